package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

// migrations lists every schema change in apply order. Each name is
// stable and recorded in _migrations so re-running is a no-op.
var migrations = []migration{
	{name: "001_initial_schema", sql: migration001},
	{name: "002_settings_table", sql: migration002},
	{name: "003_embeddings_table", sql: migration003},
	{name: "004_analysis_tasks", sql: migration004},
}

const migration001 = `
CREATE TABLE IF NOT EXISTS video_chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	fps INTEGER NOT NULL DEFAULT 2,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(device_name, start_time, end_time)
);

CREATE TABLE IF NOT EXISTS frames (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id INTEGER,
	timestamp DATETIME NOT NULL,
	monitor_index INTEGER NOT NULL DEFAULT 0,
	device_name TEXT NOT NULL DEFAULT 'default',
	file_path TEXT NOT NULL,
	active_window TEXT,
	active_process TEXT,
	browser_url TEXT,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	focused BOOLEAN DEFAULT FALSE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chunk_id) REFERENCES video_chunks(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_frames_device_time ON frames(device_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_frames_process ON frames(active_process);

CREATE TABLE IF NOT EXISTS ocr_text (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	frame_id INTEGER NOT NULL,
	text TEXT NOT NULL,
	text_json TEXT,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_ocr_frame_id ON ocr_text(frame_id);
CREATE INDEX IF NOT EXISTS idx_ocr_confidence ON ocr_text(confidence DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS ocr_text_fts USING fts5(
	text,
	content='ocr_text',
	content_rowid='id',
	tokenize = 'porter'
);

CREATE TRIGGER IF NOT EXISTS ocr_text_ai AFTER INSERT ON ocr_text BEGIN
	INSERT INTO ocr_text_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS ocr_text_ad AFTER DELETE ON ocr_text BEGIN
	DELETE FROM ocr_text_fts WHERE rowid = old.id;
END;

CREATE TRIGGER IF NOT EXISTS ocr_text_au AFTER UPDATE ON ocr_text BEGIN
	DELETE FROM ocr_text_fts WHERE rowid = old.id;
	INSERT INTO ocr_text_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_name TEXT NOT NULL UNIQUE,
	description TEXT,
	color TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(tag_name);

CREATE TABLE IF NOT EXISTS frame_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	frame_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(frame_id, tag_id),
	FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_frame_tags_frame_id ON frame_tags(frame_id);
CREATE INDEX IF NOT EXISTS idx_frame_tags_tag_id ON frame_tags(tag_id);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const migration002 = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	capture_interval INTEGER NOT NULL DEFAULT 5,
	monitors TEXT NOT NULL DEFAULT '[]',
	excluded_apps TEXT NOT NULL DEFAULT '[]',
	is_paused INTEGER NOT NULL DEFAULT 0,
	retention_days INTEGER NOT NULL DEFAULT 30,
	vision_enabled INTEGER NOT NULL DEFAULT 0,
	vision_endpoint TEXT NOT NULL DEFAULT '',
	vision_model TEXT NOT NULL DEFAULT '',
	vision_provider TEXT NOT NULL DEFAULT 'ollama',
	vision_api_key TEXT NOT NULL DEFAULT '',
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

INSERT OR IGNORE INTO settings (id, capture_interval, monitors, excluded_apps, is_paused, retention_days)
VALUES (1, 5, '[]', '["1Password", "KeePass", "Bitwarden"]', 0, 30);
`

const migration003 = `
CREATE TABLE IF NOT EXISTS embeddings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	frame_id INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	embedding BLOB,
	embedding_dim INTEGER NOT NULL DEFAULT 384,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_frame_id ON embeddings(frame_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(frame_id, chunk_index);
CREATE INDEX IF NOT EXISTS idx_embeddings_created_at ON embeddings(created_at DESC);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('embeddings_enabled', 'false');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('embeddings_model', 'all-MiniLM-L6-v2');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('embeddings_last_processed_frame_id', '0');
`

const migration004 = `
CREATE TABLE IF NOT EXISTS analysis_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	frame_id INTEGER NOT NULL,
	worker_id TEXT,
	claimed_at DATETIME,
	state TEXT NOT NULL DEFAULT 'pending',
	description TEXT,
	visible_text_json TEXT,
	activity_type TEXT,
	app_hint TEXT,
	confidence REAL,
	analysis_time_ms INTEGER,
	error_message TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_analysis_tasks_state ON analysis_tasks(state);
CREATE INDEX IF NOT EXISTS idx_analysis_tasks_frame_id ON analysis_tasks(frame_id);
`

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	log.Debug().Msg("all migrations applied")
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations WHERE name = ?`, m.name).Scan(&count); err != nil {
		return fmt.Errorf("check migration %s: %w", m.name, err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations (name) VALUES (?)`, m.name); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}

	log.Info().Str("migration", m.name).Msg("applied migration")
	return nil
}
