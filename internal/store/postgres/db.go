package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the relay schema on
// PostgreSQL. Same shape as the SQLite schema: messages.seq anchors
// append order, conversations.pair_key makes pair creation atomic.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id              VARCHAR(36)  PRIMARY KEY,
			name            VARCHAR(100) NOT NULL,
			email           VARCHAR(100) UNIQUE NOT NULL,
			profile_pic     TEXT         NOT NULL DEFAULT '',
			hashed_password VARCHAR(255) NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id          VARCHAR(36) PRIMARY KEY,
			pair_key    VARCHAR(73) UNIQUE NOT NULL,
			sender_id   VARCHAR(36) NOT NULL REFERENCES users(id),
			receiver_id VARCHAR(36) NOT NULL REFERENCES users(id),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			seq             BIGSERIAL   PRIMARY KEY,
			id              VARCHAR(36) UNIQUE NOT NULL,
			conversation_id VARCHAR(36) NOT NULL REFERENCES conversations(id),
			author_id       VARCHAR(36) NOT NULL REFERENCES users(id),
			text            TEXT        NOT NULL DEFAULT '',
			image_url       TEXT        NOT NULL DEFAULT '',
			video_url       TEXT        NOT NULL DEFAULT '',
			seen            BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_sender ON conversations(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_receiver ON conversations(receiver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_author_seen ON messages(conversation_id, author_id, seen)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
