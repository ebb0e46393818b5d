package telemetry

import (
	"database/sql"
	"time"

	"github.com/llehouerou/framesync/internal/orchestrator"
)

// Record is a stored tick report.
type Record struct {
	Session      string
	At           time.Time
	TimelineTime float64
	MediaTime    float64
	Speed        float64
	Frame        int
	ActualFrame  int
	Action       string
	Step         string
	Error        string
}

// Drift is the requested frame minus the frame shown.
func (r Record) Drift() int {
	return r.Frame - r.ActualFrame
}

// Session summarizes one recorded session.
type Session struct {
	ID        string
	Source    string
	Framerate float64
	StartedAt time.Time
	Ticks     int
	Seeks     int
	Errors    int
}

func recordFromReport(session string, rep orchestrator.Report) Record {
	r := Record{
		Session:      session,
		At:           rep.At,
		TimelineTime: rep.TimelineTime,
		MediaTime:    rep.MediaTime,
		Speed:        rep.Speed,
		Frame:        rep.Frame,
		ActualFrame:  rep.Frame,
		Action:       string(rep.Action),
	}
	if rep.Action == orchestrator.ActionSync {
		r.ActualFrame = rep.Sync.ActualFrameNumber
		r.Step = rep.Sync.Step.String()
	}
	if rep.Err != nil {
		r.Error = rep.Err.Error()
	}
	return r
}

func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(db *sql.DB, records []Record) error {
	return withTx(db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO tick_reports (
				session_id, at, timeline_time, media_time, speed,
				frame, actual_frame, action, step, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			var errText sql.NullString
			if r.Error != "" {
				errText = sql.NullString{String: r.Error, Valid: true}
			}
			_, err := stmt.Exec(
				r.Session, r.At.UnixNano(), r.TimelineTime, r.MediaTime, r.Speed,
				r.Frame, r.ActualFrame, r.Action, r.Step, errText,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Records returns the most recent reports of session, oldest first.
// A limit of zero returns all of them.
func (s *Store) Records(session string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT session_id, at, timeline_time, media_time, speed,
			frame, actual_frame, action, step, error
		FROM (
			SELECT * FROM tick_reports
			WHERE session_id = ?
			ORDER BY at DESC, id DESC
			LIMIT ?
		)
		ORDER BY at, id
	`, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var at int64
		var errText sql.NullString
		if err := rows.Scan(
			&r.Session, &at, &r.TimelineTime, &r.MediaTime, &r.Speed,
			&r.Frame, &r.ActualFrame, &r.Action, &r.Step, &errText,
		); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, at)
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sessions returns every session, most recent first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.source, s.framerate, s.started_at,
			COUNT(t.id),
			COALESCE(SUM(CASE WHEN t.step = 'seeking' OR t.action = 'seek' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.error IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM sessions s
		LEFT JOIN tick_reports t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(
			&sess.ID, &sess.Source, &sess.Framerate, &started,
			&sess.Ticks, &sess.Seeks, &sess.Errors,
		); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(0, started)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its reports.
func (s *Store) DeleteSession(id string) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM tick_reports WHERE session_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
		return err
	})
}
