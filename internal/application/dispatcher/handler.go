package dispatcher

import (
	"context"

	"github.com/garyjia/conveyance-bills/internal/domain/event"
)

// Handler processes bill events after the originating transaction committed
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
