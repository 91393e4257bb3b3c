package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	task_id    TEXT,
	type       TEXT NOT NULL DEFAULT 'other',
	title      TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	garden     TEXT NOT NULL DEFAULT '',
	plant      TEXT NOT NULL DEFAULT '',
	priority   TEXT NOT NULL DEFAULT 'low',
	timestamp  DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	read_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_ts ON notifications(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_notifications_task_id ON notifications(task_id);

CREATE TABLE IF NOT EXISTS verification_codes (
	email      TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	issued_at  DATETIME NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	expires_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS user_preferences (
	id                     TEXT PRIMARY KEY,
	email                  TEXT NOT NULL DEFAULT '',
	email_notifications    INTEGER NOT NULL DEFAULT 1 CHECK(email_notifications IN (0, 1)),
	web_push_notifications INTEGER NOT NULL DEFAULT 0 CHECK(web_push_notifications IN (0, 1)),
	updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	title               TEXT NOT NULL,
	type                TEXT NOT NULL DEFAULT 'other',
	due_date            DATETIME NOT NULL,
	completed           INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	enable_notification INTEGER NOT NULL DEFAULT 0 CHECK(enable_notification IN (0, 1)),
	notification_timing INTEGER NOT NULL DEFAULT 0,
	notification_type   TEXT NOT NULL DEFAULT 'email' CHECK(notification_type IN ('email', 'web', 'both')),
	garden_name         TEXT NOT NULL DEFAULT '',
	plant_name          TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
