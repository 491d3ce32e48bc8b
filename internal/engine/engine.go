package engine

import (
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"scrumline/internal/config"
	"scrumline/internal/events"
	"scrumline/internal/notify"
	"scrumline/internal/repo"
)

// Precondition violations surfaced before any mutation. The operation that
// reports one is a no-op.
var (
	ErrInsufficientBudget   = errors.New("insufficient budget for the next sprint")
	ErrEmptyTeam            = errors.New("no developers on the team")
	ErrNoAssignableStories  = errors.New("no incomplete story is assigned to an available developer")
	ErrSprintLimitReached   = errors.New("all configured sprints have been played")
	ErrInstanceExists       = errors.New("a play-through of this project already exists")
	ErrChallengeRestriction = errors.New("blocked by the active daily challenge")
)

// Engine runs the sprint simulation against a single project play-through.
// It is not reentrant: callers serialize operations per instance.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Notify notify.Notifier
	Config *config.Config
	Now    func() time.Time
	// NewRand returns a fresh randomness source. Every engine operation
	// draws from its own source so tests can seed operations
	// independently.
	NewRand func() *rand.Rand
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Notify:  notify.Logger{},
		Config:  cfg,
		Now:     time.Now,
		NewRand: nil,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) rng() *rand.Rand {
	if e.NewRand != nil {
		return e.NewRand()
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (e Engine) emit(message string, severity notify.Severity) {
	if e.Notify != nil {
		e.Notify.Emit(message, severity)
	}
}
