package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/repository"
)

// Email is one outbound message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer writes emails to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.logger.Info("email sent",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

// EmailService turns ticket events into emails.
type EmailService struct {
	users  repository.UserRepository
	teams  repository.TeamRepository
	mailer Mailer
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewEmailService creates the service.
func NewEmailService(repos repository.Repositories, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		users:  repos.Users,
		teams:  repos.Teams,
		mailer: mailer,
		logger: logger,
		cfg:    cfg,
	}
}

// RegisterHandlers subscribes to events.
func (e *EmailService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketAssignedToUser, e.handleAssignedToUser)
	dispatcher.Subscribe(events.EventTicketAssignedToTeam, e.handleAssignedToTeam)
	dispatcher.Subscribe(events.EventTicketActionAdded, e.handleActionAdded)
}

func (e *EmailService) handleAssignedToUser(ctx context.Context, event events.Event) error {
	var payload events.TicketAssignedToUserPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	body := fmt.Sprintf("Ticket #%s (%s) has been assigned to you.", payload.TicketNumber, payload.Title)
	return e.sendToUser(ctx, payload.AssigneeID, "Ticket Assigned: #"+payload.TicketNumber, body)
}

// handleAssignedToTeam mails every team member; a failed recipient does not
// stop the others.
func (e *EmailService) handleAssignedToTeam(ctx context.Context, event events.Event) error {
	var payload events.TicketAssignedToTeamPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	team, err := e.teams.GetByID(ctx, payload.TeamID)
	if err != nil {
		return fmt.Errorf("load team %s: %w", payload.TeamID, err)
	}
	subject := "New Ticket for Team " + team.Name
	body := fmt.Sprintf("Ticket #%s (%s) has been assigned to team %s.", payload.TicketNumber, payload.Title, team.Name)
	for _, recipientID := range team.Recipients() {
		if err := e.sendToUser(ctx, recipientID, subject, body); err != nil {
			e.logger.Warn("team assignment email failed",
				zap.String("ticket_id", event.TicketID),
				zap.String("recipient_id", recipientID),
				zap.Error(err))
		}
	}
	return nil
}

func (e *EmailService) handleActionAdded(ctx context.Context, event events.Event) error {
	var payload events.TicketActionAddedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}
	body := fmt.Sprintf("A new action was added to ticket #%s (%s):\n\n%s", payload.TicketNumber, payload.Title, payload.Description)
	return e.sendToUser(ctx, payload.CreatorID, "New Action on Ticket #"+payload.TicketNumber, body)
}

func (e *EmailService) sendToUser(ctx context.Context, userID, subject, body string) error {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	if strings.TrimSpace(user.Email) == "" || !user.Active {
		return nil
	}
	return e.mailer.Send(ctx, Email{
		From:    e.cfg.EmailFrom,
		To:      user.Email,
		Subject: subject,
		Body:    body,
	})
}
