package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

const ticketColumns = `id, ticket_number, title, description, status, priority, estimated_time,
               estimated_finish_date, created_by_id, assigned_to_id, assigned_team_id,
               status_changed_at, created_at, updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, title, description, status, priority, estimated_time,
            estimated_finish_date, created_by_id, assigned_to_id, assigned_team_id, status_changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.EstimatedTime,
		ticket.EstimatedFinishDate,
		ticket.CreatedByID,
		ticket.AssignedToID,
		ticket.AssignedTeamID,
		ticket.StatusChangedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, estimated_time=$5,
            estimated_finish_date=$6, assigned_to_id=$7, assigned_team_id=$8, status_changed_at=$9,
            updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.EstimatedTime,
		ticket.EstimatedFinishDate,
		ticket.AssignedToID,
		ticket.AssignedTeamID,
		ticket.StatusChangedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

// GetByIDForUpdate takes a row lock held until the surrounding transaction
// ends, so concurrent read-modify-write sequences on one ticket serialize.
func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id)
}

func (r *ticketRepository) fetchOne(ctx context.Context, query, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, bool, error) {
	const query = `
        SELECT ticket_number FROM tickets
        WHERE ticket_number LIKE $1 || '%'
        ORDER BY ticket_number DESC LIMIT 1`
	var number string
	if err := r.db.QueryRow(ctx, query, prefix).Scan(&number); err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return number, true, nil
}

func (r *ticketRepository) ListUnassignedNotInStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE assigned_to_id IS NULL AND status <> $1
        ORDER BY ticket_number ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, page Page) (TicketPage, error) {
	page = page.Normalize()
	where, args := buildTicketWhere(filter)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return TicketPage{}, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, ticket_number DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, page.Limit, page.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return TicketPage{}, err
	}
	defer rows.Close()
	items, err := scanTickets(rows)
	if err != nil {
		return TicketPage{}, err
	}
	return TicketPage{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// buildTicketWhere renders a TicketFilter as a parameterized WHERE clause.
// The visibility clause, when present, is always the first conjunct.
func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if v := filter.Visibility; v != nil {
		args = append(args, v.TeamIDs)
		teams := len(args)
		args = append(args, v.UserID)
		user := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(assigned_team_id = ANY($%d::uuid[]) OR assigned_to_id = $%d OR created_by_id = $%d)",
			teams, user, user))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if filter.AssignedTeamID != nil {
		args = append(args, *filter.AssignedTeamID)
		clauses = append(clauses, fmt.Sprintf("assigned_team_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.StatusChangedFrom != nil {
		args = append(args, *filter.StatusChangedFrom)
		clauses = append(clauses, fmt.Sprintf("status_changed_at >= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.EstimatedTime,
		&ticket.EstimatedFinishDate,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.AssignedTeamID,
		&ticket.StatusChangedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
