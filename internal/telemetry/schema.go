package telemetry

import "database/sql"

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			framerate REAL NOT NULL,
			started_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tick_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			at INTEGER NOT NULL,
			timeline_time REAL NOT NULL,
			media_time REAL NOT NULL,
			speed REAL NOT NULL,
			frame INTEGER NOT NULL,
			actual_frame INTEGER NOT NULL,
			action TEXT NOT NULL,
			step TEXT NOT NULL,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tick_reports_session ON tick_reports(session_id, at);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
