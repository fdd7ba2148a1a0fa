package orchestrator

import (
	"context"
	"time"

	"github.com/dirsave/dirsave/internal/session"
)

// SessionStore is the slice of the session store the orchestrator needs.
type SessionStore interface {
	Create(now time.Time) (*session.Session, error)
	Complete(id string, endTime time.Time, outcome session.Outcome) (*session.Session, error)
	Prune(cutoff time.Time) (int, error)
}

// ConnectionChecker validates the destination before any data moves.
type ConnectionChecker interface {
	TestConnection(ctx context.Context) error
}
