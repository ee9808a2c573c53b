package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository/memstore"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

func seedStore(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	repos := store.Repos()

	lead := "lead"
	teams := []*domain.Team{
		{ID: "ops", Name: "Ops", Active: true},
		{ID: "net", Name: "Network", Active: true, LeaderID: &lead},
		{ID: "db", Name: "Databases", Active: true, LeaderID: &lead},
	}
	for _, team := range teams {
		if err := repos.Teams.Create(ctx, team); err != nil {
			t.Fatalf("create team: %v", err)
		}
	}
	users := []*domain.User{
		{ID: "lead", Email: "lead@example.com", Name: "Lead", Role: domain.RoleUser, Active: true, TeamIDs: []string{"ops", "db"}},
		{ID: "root", Email: "root@example.com", Name: "Root", Role: domain.RoleAdmin, Active: true},
		{ID: "former", Email: "former@example.com", Name: "Former", Role: domain.RoleUser, Active: false},
	}
	for _, u := range users {
		if err := repos.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	return store
}

func TestResolveMergesLedTeams(t *testing.T) {
	store := seedStore(t)
	resolver := NewResolver(store.Repos().Users, store.Repos().Teams)

	actor, err := resolver.Resolve(context.Background(), "lead")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"db", "net", "ops"}
	if len(actor.TeamIDs) != len(want) {
		t.Fatalf("teams = %v, want %v", actor.TeamIDs, want)
	}
	for i, id := range want {
		if actor.TeamIDs[i] != id {
			t.Errorf("teams = %v, want %v", actor.TeamIDs, want)
			break
		}
	}
}

func TestResolveRejectsUnknownAndInactive(t *testing.T) {
	store := seedStore(t)
	resolver := NewResolver(store.Repos().Users, store.Repos().Teams)

	for _, id := range []string{"nobody", "former"} {
		_, err := resolver.Resolve(context.Background(), id)
		if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			t.Errorf("%s: expected unauthorized, got %v", id, err)
		}
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 5)
	verifier := NewTokenManager("secret-b", 5)

	token, _, err := issuer.GenerateToken("lead", domain.RoleUser)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := issuer.ParseToken(token)
	if err != nil {
		t.Fatalf("parse with own secret: %v", err)
	}
	if claims.UserID != "lead" || claims.Subject != "lead" {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func testApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	store := seedStore(t)
	tokens := NewTokenManager("test-secret", 5)
	mw := NewAuthMiddleware(tokens, NewResolver(store.Repos().Users, store.Repos().Teams))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.ID)
	})
	app.Post("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens
}

func TestMiddleware(t *testing.T) {
	app, tokens := testApp(t)
	leadToken, _, _ := tokens.GenerateToken("lead", domain.RoleUser)
	rootToken, _, _ := tokens.GenerateToken("root", domain.RoleAdmin)
	ghostToken, _, _ := tokens.GenerateToken("ghost", domain.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"no header", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/me", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"unknown user", http.MethodGet, "/me", "Bearer " + ghostToken, http.StatusUnauthorized},
		{"valid user", http.MethodGet, "/me", "Bearer " + leadToken, http.StatusOK},
		{"admin route as user", http.MethodPost, "/admin", "Bearer " + leadToken, http.StatusForbidden},
		{"admin route as admin", http.MethodPost, "/admin", "Bearer " + rootToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}
