package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation        = "23505"
	invalidTextRepr        = "22P02"
	ticketNumberConstraint = "tickets_ticket_number_key"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepositories binds Postgres repositories to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:       NewTicketRepository(db),
		Actions:       NewTicketActionRepository(db),
		Notifications: NewNotificationRepository(db),
		Users:         NewUserRepository(db),
		Teams:         NewTeamRepository(db),
	}
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) Repos() Repositories {
	return NewRepositories(s.pool)
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation && pgErr.ConstraintName == ticketNumberConstraint:
			return ErrDuplicateTicketNumber
		case pgErr.Code == invalidTextRepr:
			// a malformed uuid can never name a stored row
			return ErrNotFound
		}
	}
	return err
}

// validID reports whether id can be a primary key. Lookups by anything else
// return ErrNotFound without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
