package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation owns its own migration files and strategy.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}

// Repositories groups the stores that a status transition mutates together.
type Repositories struct {
	Sessions WorkSessionRepository
	Statuses StatusRepository
	Profiles ProfileRepository
}

// UnitOfWork runs fn inside a single storage transaction. The repositories
// handed to fn are bound to that transaction; returning an error from fn
// rolls back every write made through them.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
