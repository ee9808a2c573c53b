package repository

import (
	"context"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

type ticketActionRepository struct {
	db DBTX
}

// NewTicketActionRepository builds repository.
func NewTicketActionRepository(db DBTX) TicketActionRepository {
	return &ticketActionRepository{db: db}
}

func (r *ticketActionRepository) Append(ctx context.Context, action *domain.TicketAction) error {
	const query = `
        INSERT INTO ticket_actions (ticket_id, actor_type, actor_id, description)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		action.TicketID,
		action.ActorType,
		action.ActorID,
		action.Description,
	).Scan(&action.ID, &action.CreatedAt)
	return translateError(err)
}

func (r *ticketActionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAction, error) {
	const query = `
        SELECT id, ticket_id, actor_type, actor_id, description, created_at
        FROM ticket_actions WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAction
	for rows.Next() {
		var action domain.TicketAction
		if err := rows.Scan(
			&action.ID,
			&action.TicketID,
			&action.ActorType,
			&action.ActorID,
			&action.Description,
			&action.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}
