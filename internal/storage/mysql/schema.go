package mysql

// schema is executed statement by statement at open time. Every statement is
// idempotent; there is no migration history.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
    id BIGINT NOT NULL AUTO_INCREMENT,
    title TEXT NOT NULL,
    enhanced_title TEXT NULL,
    is_complete BOOLEAN NOT NULL DEFAULT FALSE,
    user_email VARCHAR(320) NOT NULL DEFAULT '',
    created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
    PRIMARY KEY (id),
    INDEX idx_tasks_email_created (user_email, created_at)
)`,
}

const taskColumns = "id, title, enhanced_title, is_complete, user_email, created_at, updated_at"
