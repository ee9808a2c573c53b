// Package memstore is an in-memory repository.Store.
//
// Transactions take the store lock for their whole duration and work on a
// copy of the state that replaces the live state only when the unit of work
// succeeds, so concurrent callers observe linearizable, all-or-nothing writes.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
)

type state struct {
	tickets       map[string]*domain.Ticket
	numbers       map[string]string
	actions       []domain.TicketAction
	notifications map[string]*domain.Notification
	users         map[string]*domain.User
	teams         map[string]*domain.Team
}

func newState() *state {
	return &state{
		tickets:       map[string]*domain.Ticket{},
		numbers:       map[string]string{},
		notifications: map[string]*domain.Notification{},
		users:         map[string]*domain.User{},
		teams:         map[string]*domain.Team{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, t := range s.tickets {
		c.tickets[id] = t.Clone()
	}
	for number, id := range s.numbers {
		c.numbers[number] = id
	}
	c.actions = append([]domain.TicketAction(nil), s.actions...)
	for id, n := range s.notifications {
		copied := *n
		c.notifications[id] = &copied
	}
	for id, u := range s.users {
		copied := *u
		c.users[id] = &copied
	}
	for id, t := range s.teams {
		copied := *t
		copied.MemberIDs = append([]string(nil), t.MemberIDs...)
		c.teams[id] = &copied
	}
	return c
}

// Store keeps all records in process memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() repository.Repositories {
	return s.bind(nil)
}

// WithinTx runs fn on a private copy of the state and publishes it on success.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(s.bind(work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) bind(tx *state) repository.Repositories {
	b := &binding{store: s, tx: tx}
	return repository.Repositories{
		Tickets:       &ticketRepo{b},
		Actions:       &actionRepo{b},
		Notifications: &notificationRepo{b},
		Users:         &userRepo{b},
		Teams:         &teamRepo{b},
	}
}

type binding struct {
	store *Store
	tx    *state
}

func (b *binding) with(fn func(*state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b *binding) now() time.Time {
	return b.store.now()
}

type ticketRepo struct{ *binding }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.with(func(st *state) error {
		if _, taken := st.numbers[ticket.TicketNumber]; taken {
			return repository.ErrDuplicateTicketNumber
		}
		now := r.now()
		ticket.ID = uuid.NewString()
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		if ticket.StatusChangedAt.IsZero() {
			ticket.StatusChangedAt = now
		}
		stored := ticket.Clone()
		stored.Actions = nil
		st.tickets[ticket.ID] = stored
		st.numbers[ticket.TicketNumber] = ticket.ID
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.with(func(st *state) error {
		existing, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		ticket.UpdatedAt = r.now()
		stored := ticket.Clone()
		stored.Actions = nil
		// number, creator and creation time never change after insert
		stored.TicketNumber = existing.TicketNumber
		stored.CreatedByID = existing.CreatedByID
		stored.CreatedAt = existing.CreatedAt
		st.tickets[ticket.ID] = stored
		return nil
	})
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.with(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no row lock: WithinTx already runs transactions
// one at a time.
func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter, page repository.Page) (repository.TicketPage, error) {
	page = page.Normalize()
	var matched []domain.Ticket
	_ = r.with(func(st *state) error {
		for _, t := range st.tickets {
			if filter.Matches(t) {
				matched = append(matched, *t.Clone())
			}
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].TicketNumber > matched[j].TicketNumber
	})

	result := repository.TicketPage{Total: len(matched), Limit: page.Limit, Offset: page.Offset}
	if page.Offset < len(matched) {
		end := page.Offset + page.Limit
		if end > len(matched) {
			end = len(matched)
		}
		result.Items = matched[page.Offset:end]
	}
	return result, nil
}

func (r *ticketRepo) LatestNumberWithPrefix(_ context.Context, prefix string) (string, bool, error) {
	var latest string
	var found bool
	_ = r.with(func(st *state) error {
		for number := range st.numbers {
			if strings.HasPrefix(number, prefix) && (!found || number > latest) {
				latest, found = number, true
			}
		}
		return nil
	})
	return latest, found, nil
}

func (r *ticketRepo) ListUnassignedNotInStatus(_ context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	var out []domain.Ticket
	_ = r.with(func(st *state) error {
		for _, t := range st.tickets {
			if t.AssignedToID == nil && t.Status != status {
				out = append(out, *t.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out, nil
}

type actionRepo struct{ *binding }

func (r *actionRepo) Append(_ context.Context, action *domain.TicketAction) error {
	return r.with(func(st *state) error {
		if _, ok := st.tickets[action.TicketID]; !ok {
			return repository.ErrNotFound
		}
		action.ID = uuid.NewString()
		action.CreatedAt = r.now()
		st.actions = append(st.actions, *action)
		return nil
	})
}

func (r *actionRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAction, error) {
	var out []domain.TicketAction
	_ = r.with(func(st *state) error {
		for _, a := range st.actions {
			if a.TicketID == ticketID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, nil
}

type notificationRepo struct{ *binding }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	return r.with(func(st *state) error {
		n.ID = uuid.NewString()
		n.Read = false
		n.CreatedAt = r.now()
		copied := *n
		st.notifications[n.ID] = &copied
		return nil
	})
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.with(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		copied := *n
		out = &copied
		return nil
	})
	return out, err
}

func (r *notificationRepo) ListUnreadByRecipient(_ context.Context, recipientID string) ([]domain.Notification, error) {
	var out []domain.Notification
	_ = r.with(func(st *state) error {
		for _, n := range st.notifications {
			if n.RecipientID == recipientID && !n.Read {
				out = append(out, *n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id string) error {
	return r.with(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		n.Read = true
		return nil
	})
}

type userRepo struct{ *binding }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	return r.with(func(st *state) error {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		now := r.now()
		user.CreatedAt = now
		user.UpdatedAt = now
		copied := *user
		copied.TeamIDs = nil
		st.users[user.ID] = &copied
		for _, teamID := range user.TeamIDs {
			if team, ok := st.teams[teamID]; ok {
				team.MemberIDs = appendUnique(team.MemberIDs, user.ID)
			}
		}
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	var out *domain.User
	err := r.with(func(st *state) error {
		for _, u := range st.users {
			if !match(u) {
				continue
			}
			copied := *u
			copied.TeamIDs = memberships(st, u.ID)
			out = &copied
			return nil
		}
		return repository.ErrNotFound
	})
	return out, err
}

func memberships(st *state, userID string) []string {
	var ids []string
	for _, team := range st.teams {
		for _, member := range team.MemberIDs {
			if member == userID {
				ids = append(ids, team.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

type teamRepo struct{ *binding }

func (r *teamRepo) Create(_ context.Context, team *domain.Team) error {
	return r.with(func(st *state) error {
		if team.ID == "" {
			team.ID = uuid.NewString()
		}
		now := r.now()
		team.CreatedAt = now
		team.UpdatedAt = now
		copied := *team
		copied.MemberIDs = append([]string(nil), team.MemberIDs...)
		st.teams[team.ID] = &copied
		return nil
	})
}

func (r *teamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	var out *domain.Team
	err := r.with(func(st *state) error {
		t, ok := st.teams[id]
		if !ok {
			return repository.ErrNotFound
		}
		copied := *t
		copied.MemberIDs = append([]string(nil), t.MemberIDs...)
		out = &copied
		return nil
	})
	return out, err
}

func (r *teamRepo) AddMember(_ context.Context, teamID, userID string) error {
	return r.with(func(st *state) error {
		team, ok := st.teams[teamID]
		if !ok {
			return repository.ErrNotFound
		}
		team.MemberIDs = appendUnique(team.MemberIDs, userID)
		return nil
	})
}

func (r *teamRepo) ListLedBy(_ context.Context, userID string) ([]domain.Team, error) {
	var out []domain.Team
	_ = r.with(func(st *state) error {
		for _, t := range st.teams {
			if t.LeaderID != nil && *t.LeaderID == userID {
				copied := *t
				copied.MemberIDs = append([]string(nil), t.MemberIDs...)
				out = append(out, copied)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
