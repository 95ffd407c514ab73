package notify

import (
	"context"
	"errors"
	"fmt"

	"chargequeue/backend/services/queue-service/internal/models"
)

// Sink delivers one event to an outside channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.Event) error
}

// Multi delivers every event to each of its sinks.
type Multi []Sink

// Name returns sink name.
func (m Multi) Name() string { return "multi" }

// Deliver tries every sink and joins their failures.
func (m Multi) Deliver(ctx context.Context, event models.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
