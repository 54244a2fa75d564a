package subscriber

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/deploytrack/deploytrack/internal/chainclient"
	"github.com/deploytrack/deploytrack/pkg/window"
)

// Head submits new chain heads from a websocket subscription, trailing the
// tip by a configurable number of confirmations.
type Head struct {
	log           *zap.SugaredLogger
	client        chainclient.ChainClient
	confirmations uint64
}

var _ Subscriber = (*Head)(nil)

func NewHead(log *zap.SugaredLogger, client chainclient.ChainClient, confirmations uint64) *Head {
	return &Head{
		log:           log,
		client:        client,
		confirmations: confirmations,
	}
}

// Subscribe is a BLOCKING function. It subscribes to new heads and submits
// them to the manager. It returns when it fails to subscribe, ctx is done or
// the subscription errors.
func (s *Head) Subscribe(ctx context.Context, capacity int, manager *window.Manager) error {
	ch := make(chan *types.Header, capacity)
	sub, err := s.client.SubscribeNewHead(ctx, ch)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return ctx.Err()
		case header := <-ch:
			tip := header.Number.Uint64()
			if tip < s.confirmations {
				continue
			}
			h := tip - s.confirmations
			s.log.Debugw("received new block from subscription", "tip", tip, "height", h)
			if !manager.SubmitHeight(h) {
				s.log.Debugw("dropped realtime height; queued for backfill", "height", h)
			}
		case err := <-sub.Err():
			return fmt.Errorf("subscribe new heads: %w", err)
		}
	}
}
