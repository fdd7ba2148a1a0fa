// Package session persists backup run history in a local BoltDB database.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/dirsave/dirsave/internal/types"
)

var (
	// ErrSessionNotFound is returned when completing an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyCompleted is returned when completing a session that
	// already reached a terminal state.
	ErrAlreadyCompleted = errors.New("session already completed")
)

var sessionsBucket = []byte("sessions")

// Session is one backup run record. Terminal sessions are immutable.
type Session struct {
	ID            string              `json:"id"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       *time.Time          `json:"end_time,omitempty"`
	Status        types.SessionStatus `json:"status"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	FilesBackedUp int                 `json:"files_backed_up"`
	TotalBytes    int64               `json:"total_bytes"`
}

// Duration returns how long the session ran, zero while still running.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Outcome describes the terminal state applied by Complete.
type Outcome struct {
	Status        types.SessionStatus
	ErrorMessage  string
	FilesBackedUp int
	TotalBytes    int64
}

// Store wraps the BoltDB session database.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the session database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cannot create session database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open session database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize session database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new running session starting at now.
func (s *Store) Create(now time.Time) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		StartTime: now,
		Status:    types.StatusRunning,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return putSession(tx, session)
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create session: %w", err)
	}
	return session, nil
}

// Complete transitions a running session to its terminal state. The
// transition happens exactly once: completing a missing session returns
// ErrSessionNotFound and completing a terminal one ErrAlreadyCompleted.
func (s *Store) Complete(id string, endTime time.Time, outcome Outcome) (*Session, error) {
	var completed *Session

	err := s.db.Update(func(tx *bolt.Tx) error {
		session, err := getSession(tx, id)
		if err != nil {
			return err
		}
		if session.Status.Terminal() {
			return fmt.Errorf("session %s is already %s: %w", id, session.Status, ErrAlreadyCompleted)
		}

		session.EndTime = &endTime
		session.Status = outcome.Status
		session.ErrorMessage = outcome.ErrorMessage
		session.FilesBackedUp = outcome.FilesBackedUp
		session.TotalBytes = outcome.TotalBytes

		if err := putSession(tx, session); err != nil {
			return err
		}
		completed = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Get returns one session by ID.
func (s *Store) Get(id string) (*Session, error) {
	var session *Session
	err := s.db.View(func(tx *bolt.Tx) error {
		found, err := getSession(tx, id)
		if err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Recent returns up to limit sessions, newest start time first.
func (s *Store) Recent(limit int) ([]*Session, error) {
	var sessions []*Session

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("corrupt session record %s: %w", k, err)
			}
			sessions = append(sessions, &session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Prune deletes sessions older than the cutoff regardless of status and
// returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		c := bucket.Cursor()

		var doomed [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("corrupt session record %s: %w", k, err)
			}
			if session.StartTime.Before(cutoff) {
				key := make([]byte, len(k))
				copy(key, k)
				doomed = append(doomed, key)
			}
		}

		for _, key := range doomed {
			if err := bucket.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot prune sessions: %w", err)
	}
	return deleted, nil
}

// ReconcileStale marks leftover running sessions (from a crashed or
// killed process) as failed. Returns how many were reconciled.
func (s *Store) ReconcileStale(now time.Time) (int, error) {
	reconciled := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		c := bucket.Cursor()

		var stale []*Session
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("corrupt session record %s: %w", k, err)
			}
			if session.Status == types.StatusRunning {
				stale = append(stale, &session)
			}
		}

		for _, session := range stale {
			end := now
			session.EndTime = &end
			session.Status = types.StatusFailed
			session.ErrorMessage = "interrupted by shutdown"
			if err := putSession(tx, session); err != nil {
				return err
			}
			reconciled++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cannot reconcile stale sessions: %w", err)
	}
	return reconciled, nil
}

func putSession(tx *bolt.Tx, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return tx.Bucket(sessionsBucket).Put([]byte(session.ID), data)
}

func getSession(tx *bolt.Tx, id string) (*Session, error) {
	data := tx.Bucket(sessionsBucket).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", id, err)
	}
	return &session, nil
}
