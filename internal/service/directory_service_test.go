package service

import (
	"context"
	"testing"

	"github.com/spec-kit/ticketmanager/internal/domain"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store, nil)
	ctx := context.Background()

	user, err := dir.CreateUser(ctx, UserInput{Email: " Dave@Example.com ", Name: "Dave"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "dave@example.com" || user.Role != domain.RoleUser || !user.Active {
		t.Errorf("unexpected user %+v", user)
	}

	tests := []struct {
		name string
		in   UserInput
		code string
	}{
		{"duplicate email", UserInput{Email: "DAVE@example.com"}, apperrors.CodeConflict},
		{"missing email", UserInput{Name: "x"}, apperrors.CodeValidation},
		{"bad role", UserInput{Email: "eve@example.com", Role: "ROOT"}, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.CreateUser(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}
}

func TestCreateTeamAndMembership(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store, nil)
	ctx := context.Background()

	_, err := dir.CreateTeam(ctx, TeamInput{Name: "Ops", MemberIDs: []string{"gone"}})
	assertCode(t, err, apperrors.CodeValidation)

	team, err := dir.CreateTeam(ctx, TeamInput{Name: "Ops", LeaderID: strPtr("carol"), MemberIDs: []string{"bob"}})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := dir.AddMember(ctx, team.ID, "alice"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := dir.AddMember(ctx, team.ID, "alice"); err != nil {
		t.Errorf("adding twice: %v", err)
	}
	assertCode(t, dir.AddMember(ctx, "nope", "alice"), apperrors.CodeNotFound)

	stored, err := f.store.Repos().Teams.GetByID(ctx, team.ID)
	if err != nil {
		t.Fatalf("reload team: %v", err)
	}
	if got := stored.Recipients(); len(got) != 3 {
		t.Errorf("recipients = %v, want bob, alice and carol", got)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store, nil)
	ctx := context.Background()

	first, created, err := dir.EnsureAdmin(ctx, "root@example.com")
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	if first.Role != domain.RoleAdmin {
		t.Errorf("role = %s", first.Role)
	}
	second, created, err := dir.EnsureAdmin(ctx, "ROOT@example.com")
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Errorf("ids differ: %s vs %s", second.ID, first.ID)
	}
}
