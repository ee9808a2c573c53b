package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// DirectoryService manages the users and teams the engine authorizes against.
type DirectoryService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(store repository.Store, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{store: store, logger: logger}
}

// UserInput carries the fields of a new user.
type UserInput struct {
	Email string
	Name  string
	Role  domain.Role
}

// TeamInput carries the fields of a new team.
type TeamInput struct {
	Name        string
	Description string
	LeaderID    *string
	MemberIDs   []string
}

// CreateUser registers an active user. Emails are unique case-insensitively.
func (s *DirectoryService) CreateUser(ctx context.Context, in UserInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	}
	role := domain.Role(strings.ToUpper(string(in.Role)))
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"field": "role", "value": in.Role})
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}

	user := &domain.User{Email: email, Name: name, Role: role, Active: true}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
			return apperrors.NewConflict("email already registered", map[string]any{"email": email})
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// CreateTeam registers an active team. Leader and members must exist.
func (s *DirectoryService) CreateTeam(ctx context.Context, in TeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	team := &domain.Team{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
		LeaderID:    in.LeaderID,
		MemberIDs:   in.MemberIDs,
	}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if in.LeaderID != nil {
			if _, err := activeUser(ctx, repos.Users, *in.LeaderID); err != nil {
				return err
			}
		}
		for _, id := range in.MemberIDs {
			if _, err := activeUser(ctx, repos.Users, id); err != nil {
				return err
			}
		}
		return repos.Teams.Create(ctx, team)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("team created", zap.String("team_id", team.ID), zap.Int("members", len(team.MemberIDs)))
	return team, nil
}

// AddMember adds an existing user to an existing team. Repeated calls are no-ops.
func (s *DirectoryService) AddMember(ctx context.Context, teamID, userID string) error {
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Teams.GetByID(ctx, teamID); err != nil {
			return mapRepoError(err, "team", teamID)
		}
		if _, err := activeUser(ctx, repos.Users, userID); err != nil {
			return err
		}
		return repos.Teams.AddMember(ctx, teamID, userID)
	})
	return apperrors.MapError(err)
}

// EnsureAdmin returns the user registered under email, creating an admin
// when none exists yet.
func (s *DirectoryService) EnsureAdmin(ctx context.Context, email string) (*domain.User, bool, error) {
	existing, err := s.store.Repos().Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.MapError(err)
	}
	user, err := s.CreateUser(ctx, UserInput{Email: email, Name: "Administrator", Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
