package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

// pathID returns the :id route parameter. A malformed id cannot name any
// stored resource, so it is reported as not found.
func pathID(c *fiber.Ctx, resource string) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return id, nil
}

// checkIDs rejects request fields that are set but are not UUIDs.
func checkIDs(fields map[string]*string) error {
	for field, val := range fields {
		if val == nil {
			continue
		}
		if _, err := uuid.Parse(*val); err != nil {
			return apperrors.NewValidationError("invalid id", map[string]any{"field": field, "value": *val})
		}
	}
	return nil
}
