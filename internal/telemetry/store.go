// Package telemetry persists orchestrator tick reports in sqlite so sync
// behaviour can be inspected after a session.
package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/framesync/internal/orchestrator"
)

const (
	appName    = "framesync"
	dbFileName = "telemetry.db"
	flushDelay = 500 * time.Millisecond
	// maxPending forces a flush so a long session never buffers
	// unbounded reports.
	maxPending = 256
)

type Store struct {
	db  *sql.DB
	log log.FieldLogger

	mu         sync.Mutex
	session    string
	pending    []Record
	flushTimer *time.Timer
}

// Open opens the store at path, or at the XDG data location when path is
// empty.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = defaultPath(); err != nil {
			return nil, err
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log.StandardLogger()}, nil
}

// SetLogger replaces the logger used for write failures.
func (s *Store) SetLogger(logger log.FieldLogger) {
	s.log = logger
}

// StartSession begins a new session; later reports are recorded under it.
func (s *Store) StartSession(source string, framerate float64) (string, error) {
	if err := s.Flush(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, source, framerate, started_at)
		VALUES (?, ?, ?, ?)
	`, id, source, framerate, time.Now().UnixNano())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.session = id
	s.mu.Unlock()
	return id, nil
}

// Session returns the current session id, empty before StartSession.
func (s *Store) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Record queues a tick report. Reports are written in batches after a
// short delay. Reports outside a session are dropped.
func (s *Store) Record(rep orchestrator.Report) {
	s.mu.Lock()
	if s.session == "" {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, recordFromReport(s.session, rep))
	full := len(s.pending) >= maxPending
	if !full && s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(flushDelay, func() {
			if err := s.Flush(); err != nil {
				s.log.WithError(err).Warn("telemetry flush failed")
			}
		})
	}
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.log.WithError(err).Warn("telemetry flush failed")
		}
	}
}

// Flush writes queued reports.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return insertRecords(s.db, pending)
}

// Close flushes queued reports and closes the database.
func (s *Store) Close() error {
	flushErr := s.Flush()
	if err := s.db.Close(); err != nil {
		return err
	}
	return flushErr
}

func defaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
