package reload

import (
	"context"

	"github.com/conneroisu/swimport/internal/logging"
	"github.com/conneroisu/swimport/internal/watcher"
	"github.com/conneroisu/swimport/internal/websocket"
)

// Broadcaster delivers a message to every connected dev client.
type Broadcaster interface {
	BroadcastMessage(message websocket.UpdateMessage)
}

// Coordinator forces a full reload when a tracked worker file changes.
type Coordinator struct {
	tracked     *TrackedSet
	broadcaster Broadcaster
	logger      logging.Logger
}

// NewCoordinator wires a tracked set to a broadcaster.
func NewCoordinator(tracked *TrackedSet, broadcaster Broadcaster, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		tracked:     tracked,
		broadcaster: broadcaster,
		logger:      logger.WithComponent("reload"),
	}
}

// HandleChange inspects a debounced batch. If any event touches a tracked
// file a single full_reload is broadcast for the whole batch. Events that
// do not touch a tracked file are returned for other handlers.
func (c *Coordinator) HandleChange(ctx context.Context, events []watcher.ChangeEvent) []watcher.ChangeEvent {
	var (
		claimed   []string
		unclaimed []watcher.ChangeEvent
	)

	for _, event := range events {
		if c.tracked.Has(event.Path) {
			claimed = append(claimed, event.Path)
			continue
		}
		unclaimed = append(unclaimed, event)
	}

	if len(claimed) == 0 {
		return unclaimed
	}

	c.logger.Info(ctx, "Worker changed, reloading clients", "files", claimed)

	if c.broadcaster != nil {
		c.broadcaster.BroadcastMessage(websocket.UpdateMessage{
			Type:   websocket.MessageFullReload,
			Target: claimed[0],
		})
	}

	return unclaimed
}
