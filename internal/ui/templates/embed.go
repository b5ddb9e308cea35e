// Package templates renders the task board page and its list fragment.
package templates

import (
	"embed"
	"html/template"
	"strconv"
	"sync"
)

//go:embed *.tmpl
var files embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

// Parse returns the embedded template set. It is parsed once and shared.
func Parse() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.New("").Funcs(template.FuncMap{
			"taskPath": func(id int64, action string) string {
				return "/ui/tasks/" + strconv.FormatInt(id, 10) + "/" + action
			},
		}).ParseFS(files, "*.tmpl")
	})
	return parsed, parseErr
}
