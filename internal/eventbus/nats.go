package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/quillworks/taskboard/internal/types"
)

// DefaultSubject is the NATS subject task events are exchanged on.
const DefaultSubject = "taskboard.tasks.events"

// NATSConfig configures a NATSBridge.
type NATSConfig struct {
	URL     string
	Subject string
	// Origin identifies this process. Events carrying the same origin are not
	// re-published locally.
	Origin string
	// Name is the NATS connection name shown in server monitoring.
	Name   string
	Token  string
	Logger *slog.Logger
}

// NATSBridge connects the local dispatcher to other taskboard processes.
// Publish sends a local event to NATS; Run delivers remote events to the
// local publisher.
type NATSBridge struct {
	conn    *nats.Conn
	subject string
	origin  string
	local   Publisher
	logger  *slog.Logger
}

// ConnectNATS dials the server and returns a bridge that re-publishes remote
// events into local.
func ConnectNATS(cfg NATSConfig, local Publisher) (*NATSBridge, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("eventbus: nats url is required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	name := cfg.Name
	if name == "" {
		name = "taskboard"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	connectOpts := []nats.Option{
		nats.Name(name),
		nats.Timeout(2 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.NoEcho(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		connectOpts = append(connectOpts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect nats %s: %w", cfg.URL, err)
	}

	return &NATSBridge{
		conn:    nc,
		subject: subject,
		origin:  cfg.Origin,
		local:   local,
		logger:  logger,
	}, nil
}

// Publish implements Publisher by forwarding evt to NATS. Events that came
// from another process are not forwarded again.
func (b *NATSBridge) Publish(evt types.TaskEvent) {
	if evt.Origin == "" {
		evt.Origin = b.origin
	}
	if evt.Origin != b.origin {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Warn("encode task event", "error", err)
		return
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		b.logger.Warn("publish task event to nats", "error", err, "type", evt.Type, "task_id", evt.TaskID)
	}
}

// Run subscribes to the subject and blocks until ctx is cancelled.
func (b *NATSBridge) Run(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject, b.handleMessage)
	if err != nil {
		return fmt.Errorf("eventbus: subscribe %s: %w", b.subject, err)
	}
	b.logger.Info("nats bridge listening", "subject", b.subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		b.logger.Debug("nats unsubscribe", "error", err)
	}
	return nil
}

func (b *NATSBridge) handleMessage(msg *nats.Msg) {
	var evt types.TaskEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		b.logger.Warn("decode task event from nats", "error", err)
		return
	}
	if !evt.Type.IsValid() {
		b.logger.Warn("ignoring task event with unknown type", "type", evt.Type)
		return
	}
	if b.origin != "" && evt.Origin == b.origin {
		return
	}
	b.local.Publish(evt)
}

// Close drains and closes the connection.
func (b *NATSBridge) Close() {
	if b.conn == nil {
		return
	}
	_ = b.conn.Drain()
	b.conn.Close()
}
