package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticketmanager/internal/repository"
	apperrors "github.com/spec-kit/ticketmanager/pkg/util/errorutil"
)

const (
	ticketSequenceDigits = 6
	maxTicketSequence    = 999999
)

// TicketPeriod returns the numbering period for now: its calendar year.
func TicketPeriod(now time.Time) string {
	return fmt.Sprintf("%04d", now.Year())
}

// FormatTicketNumber renders period followed by the zero padded sequence.
func FormatTicketNumber(period string, sequence int) string {
	return fmt.Sprintf("%s%0*d", period, ticketSequenceDigits, sequence)
}

// NextTicketNumber returns the number following the greatest one issued in
// the period of now. Uniqueness is enforced by the store, so a concurrent
// writer may still claim the same number first.
func NextTicketNumber(ctx context.Context, tickets repository.TicketRepository, now time.Time) (string, error) {
	period := TicketPeriod(now)
	latest, found, err := tickets.LatestNumberWithPrefix(ctx, period)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if !found {
		return FormatTicketNumber(period, 1), nil
	}
	sequence, err := parseSequence(period, latest)
	if err != nil {
		return "", err
	}
	if sequence >= maxTicketSequence {
		return "", apperrors.NewConflict("ticket numbers exhausted for period", map[string]any{
			"period":               period,
			"latest_ticket_number": latest,
		})
	}
	return FormatTicketNumber(period, sequence+1), nil
}

// parseSequence reads the fixed-width decimal suffix after period.
func parseSequence(period, number string) (int, error) {
	suffix, ok := strings.CutPrefix(number, period)
	if !ok || len(suffix) != ticketSequenceDigits {
		return 0, allocationError(number)
	}
	sequence := 0
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, allocationError(number)
		}
		sequence = sequence*10 + int(r-'0')
	}
	return sequence, nil
}

func allocationError(number string) error {
	return apperrors.NewValidationError("ticket number allocation failed", map[string]any{
		"latest_ticket_number": number,
	})
}
