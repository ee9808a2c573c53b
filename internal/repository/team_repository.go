package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketmanager/internal/domain"
)

const teamSelect = `
        SELECT t.id, t.name, t.description, t.active, t.leader_id,
               COALESCE(ARRAY(SELECT tm.user_id::text FROM team_members tm WHERE tm.team_id = t.id ORDER BY tm.user_id), '{}'),
               t.created_at, t.updated_at
        FROM teams t`

type teamRepository struct {
	db DBTX
}

// NewTeamRepository constructs repository.
func NewTeamRepository(db DBTX) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	const query = `
        INSERT INTO teams (name, description, active, leader_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	if err := r.db.QueryRow(ctx, query,
		team.Name,
		team.Description,
		team.Active,
		team.LeaderID,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt); err != nil {
		return translateError(err)
	}
	for _, userID := range team.MemberIDs {
		if err := r.AddMember(ctx, team.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *teamRepository) AddMember(ctx context.Context, teamID, userID string) error {
	const query = `
        INSERT INTO team_members (team_id, user_id) VALUES ($1,$2)
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, teamID, userID)
	return translateError(err)
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	team, err := scanTeam(r.db.QueryRow(ctx, teamSelect+` WHERE t.id=$1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return team, nil
}

func (r *teamRepository) ListLedBy(ctx context.Context, userID string) ([]domain.Team, error) {
	rows, err := r.db.Query(ctx, teamSelect+` WHERE t.leader_id=$1 ORDER BY t.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *team)
	}
	return result, rows.Err()
}

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.Description,
		&team.Active,
		&team.LeaderID,
		&team.MemberIDs,
		&team.CreatedAt,
		&team.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &team, nil
}
