package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/events"
	"github.com/spec-kit/ticketmanager/internal/service"
)

// NotificationWorker drains the event queue into the email service.
type NotificationWorker struct {
	queue  events.Queue
	emails *service.EmailService
	logger *zap.Logger
	done   chan struct{}
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(queue events.Queue, emails *service.EmailService, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{queue: queue, emails: emails, logger: logger, done: make(chan struct{})}
}

// Start registers the email handlers and consumes events until ctx ends.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.emails.RegisterHandlers(w.queue)
	go func() {
		defer close(w.done)
		w.logger.Info("notification worker started")
		if err := w.queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("notification worker stopped", zap.Error(err))
			return
		}
		w.logger.Info("notification worker stopped")
	}()
}

// Wait blocks until the worker has exited.
func (w *NotificationWorker) Wait() {
	<-w.done
}
