package auth

import (
	"context"
	"errors"
	"sort"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// Resolver builds the Actor for an authenticated user id.
type Resolver struct {
	users repository.UserRepository
	teams repository.TeamRepository
}

// NewResolver constructs a Resolver.
func NewResolver(users repository.UserRepository, teams repository.TeamRepository) *Resolver {
	return &Resolver{users: users, teams: teams}
}

// Resolve loads the user and merges the teams they lead into their
// memberships. Unknown or inactive users are unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*domain.Actor, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("user is inactive")
	}

	led, err := r.teams.ListLedBy(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	seen := make(map[string]struct{}, len(user.TeamIDs)+len(led))
	teamIDs := make([]string, 0, len(user.TeamIDs)+len(led))
	for _, id := range user.TeamIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			teamIDs = append(teamIDs, id)
		}
	}
	for _, team := range led {
		if _, ok := seen[team.ID]; !ok {
			seen[team.ID] = struct{}{}
			teamIDs = append(teamIDs, team.ID)
		}
	}
	sort.Strings(teamIDs)

	return &domain.Actor{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Role:    user.Role,
		TeamIDs: teamIDs,
	}, nil
}
