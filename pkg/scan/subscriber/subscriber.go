package subscriber

import (
	"context"

	"github.com/deploytrack/deploytrack/pkg/window"
)

// Subscriber feeds freshly announced block heights into the window manager.
type Subscriber interface {
	// Subscribe is a BLOCKING function. It submits new heights to the manager
	// until ctx is done or the source fails.
	Subscribe(ctx context.Context, capacity int, manager *window.Manager) error
}
