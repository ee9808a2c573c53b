package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketmanager/internal/api/dto"
	"github.com/spec-kit/ticketmanager/internal/auth"
	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/repository"
	"github.com/spec-kit/ticketmanager/internal/service"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := checkIDs(map[string]*string{
		"assigned_to_id":   req.AssignedToID,
		"assigned_team_id": req.AssignedTeamID,
	}); err != nil {
		return err
	}
	finish, err := parseDatePtr("estimated_finish_date", req.EstimatedFinishDate)
	if err != nil {
		return err
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:               req.Title,
		Description:         req.Description,
		Priority:            req.Priority,
		EstimatedTime:       req.EstimatedTime,
		EstimatedFinishDate: finish,
		AssignedToID:        req.AssignedToID,
		AssignedTeamID:      req.AssignedTeamID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.tickets.ListTickets(c.UserContext(), actor, query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketSummary(&page.Items[i]))
	}
	return c.JSON(dto.TicketListResponse{Data: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	finish, err := parseDatePtr("estimated_finish_date", req.EstimatedFinishDate)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), actor, id, service.TicketPatch{
		Title:               req.Title,
		Description:         req.Description,
		Priority:            req.Priority,
		EstimatedTime:       req.EstimatedTime,
		EstimatedFinishDate: finish,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// PauseTicket POST /tickets/:id/pause.
func (h *TicketsHandler) PauseTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.PauseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.PauseTicket(c.UserContext(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AddAction POST /tickets/:id/actions.
func (h *TicketsHandler) AddAction(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.AddActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	action, err := h.tickets.AddAction(c.UserContext(), actor, id, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": actionResponse(action)})
}

// AssignUser PUT /tickets/:id/assignee.
func (h *TicketsHandler) AssignUser(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.AssignUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID != nil && strings.TrimSpace(*req.UserID) == "" {
		req.UserID = nil
	}
	if err := checkIDs(map[string]*string{"user_id": req.UserID}); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignToUser(c.UserContext(), actor, id, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AssignTeam PUT /tickets/:id/team.
func (h *TicketsHandler) AssignTeam(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.AssignTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TeamID) == "" {
		return apperrors.NewValidationError("team_id required", map[string]any{"field": "team_id"})
	}
	if err := checkIDs(map[string]*string{"team_id": &req.TeamID}); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignToTeam(c.UserContext(), actor, id, req.TeamID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// FixUnassignedStatuses POST /tickets/maintenance/fix-unassigned-status.
func (h *TicketsHandler) FixUnassignedStatuses(c *fiber.Ctx) error {
	fixed, err := h.tickets.FixUnassignedTicketStatuses(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RepairResponse{Fixed: fixed}})
}

func requireActor(c *fiber.Ctx) (*domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok || actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketQuery, error) {
	var (
		query service.TicketQuery
		err   error
	)
	if v := c.Query("assigned_to"); v != "" {
		query.AssignedToID = &v
	}
	query.AssignedToMe = c.QueryBool("assigned_to_me", false)
	if v := c.Query("assigned_team"); v != "" {
		query.AssignedTeamID = &v
	}
	if err := checkIDs(map[string]*string{
		"assigned_to":   query.AssignedToID,
		"assigned_team": query.AssignedTeamID,
	}); err != nil {
		return query, err
	}
	if v := c.Query("status"); v != "" {
		status := domain.TicketStatus(strings.ToUpper(v))
		query.Status = &status
	}
	if query.CreatedFrom, err = parseDateQuery(c, "created_from"); err != nil {
		return query, err
	}
	if query.CreatedTo, err = parseDateQuery(c, "created_to"); err != nil {
		return query, err
	}
	if query.StatusChangedFrom, err = parseDateQuery(c, "status_changed_from"); err != nil {
		return query, err
	}
	query.Page = repository.Page{
		Limit:  parseInt(c.Query("limit"), 0),
		Offset: parseInt(c.Query("offset"), 0),
	}
	return query, nil
}

func parseDateQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	return parseDatePtr(name, &v)
}

// parseDatePtr accepts YYYY-MM-DD or RFC 3339.
func parseDatePtr(field string, val *string) (*time.Time, error) {
	if val == nil || strings.TrimSpace(*val) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*val)
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"field": field, "value": raw})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		TicketNumber:    ticket.TicketNumber,
		Title:           ticket.Title,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		CreatedByID:     ticket.CreatedByID,
		AssignedToID:    ticket.AssignedToID,
		AssignedTeamID:  ticket.AssignedTeamID,
		StatusChangedAt: ticket.StatusChangedAt,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	actions := make([]dto.TicketActionResponse, 0, len(ticket.Actions))
	for i := range ticket.Actions {
		actions = append(actions, actionResponse(&ticket.Actions[i]))
	}
	var finish *string
	if ticket.EstimatedFinishDate != nil {
		formatted := ticket.EstimatedFinishDate.Format(dateLayout)
		finish = &formatted
	}
	return dto.TicketDetailResponse{
		TicketSummary:       ticketSummary(ticket),
		Description:         ticket.Description,
		EstimatedTime:       ticket.EstimatedTime,
		EstimatedFinishDate: finish,
		Actions:             actions,
	}
}

func actionResponse(action *domain.TicketAction) dto.TicketActionResponse {
	return dto.TicketActionResponse{
		ID:          action.ID,
		ActorType:   action.ActorType,
		ActorID:     action.ActorID,
		Description: action.Description,
		CreatedAt:   action.CreatedAt,
	}
}
