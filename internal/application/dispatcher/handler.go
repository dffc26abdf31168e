package dispatcher

import (
	"context"

	"github.com/garyjia/claims-fulfillment/internal/domain/event"
)

// Handler processes fulfillment events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo is a registered handler with its name for logging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
