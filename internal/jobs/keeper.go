package jobs

import (
	"context"
	"errors"
	"time"

	"confidential-market/internal/models"
	"confidential-market/internal/services"

	"go.uber.org/zap"
)

const keeperBatch = 100

// Markets is the part of the market service the keeper drives.
type Markets interface {
	ExpiredOpenMarkets(ctx context.Context, limit int) ([]*models.Market, error)
	StalledReveals(ctx context.Context, limit int) ([]*models.Market, error)
	Close(ctx context.Context, marketID string) (*models.Market, error)
	ForceTimeout(ctx context.Context, marketID string) (*models.Market, error)
}

// Keeper closes expired markets and times out stalled reveals. Both actions
// are permissionless, so the keeper only saves users the call.
type Keeper struct {
	markets  Markets
	interval time.Duration
	logger   *zap.Logger
}

func NewKeeper(markets Markets, interval time.Duration, logger *zap.Logger) *Keeper {
	return &Keeper{
		markets:  markets,
		interval: interval,
		logger:   logger.Named("keeper"),
	}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables the keeper.
func (k *Keeper) Run(ctx context.Context) error {
	if k.interval <= 0 {
		k.logger.Info("keeper disabled")
		return nil
	}
	k.logger.Info("starting keeper", zap.Duration("interval", k.interval))

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.Sweep(ctx)
		case <-ctx.Done():
			k.logger.Info("stopping keeper")
			return nil
		}
	}
}

// Sweep runs one pass and returns how many markets it closed and timed out.
func (k *Keeper) Sweep(ctx context.Context) (closed, timedOut int) {
	expired, err := k.markets.ExpiredOpenMarkets(ctx, keeperBatch)
	if err != nil {
		k.logger.Error("failed to list expired markets", zap.Error(err))
	}
	for _, m := range expired {
		if _, err := k.markets.Close(ctx, m.ID); err != nil {
			k.skip("close", m.ID, err)
			continue
		}
		closed++
	}

	stalled, err := k.markets.StalledReveals(ctx, keeperBatch)
	if err != nil {
		k.logger.Error("failed to list stalled reveals", zap.Error(err))
	}
	for _, m := range stalled {
		if _, err := k.markets.ForceTimeout(ctx, m.ID); err != nil {
			k.skip("timeout", m.ID, err)
			continue
		}
		timedOut++
	}

	if closed > 0 || timedOut > 0 {
		k.logger.Info("sweep done", zap.Int("closed", closed), zap.Int("timed_out", timedOut))
	}
	return closed, timedOut
}

// skip logs a failed action. Losing a race to another caller is expected.
func (k *Keeper) skip(action, marketID string, err error) {
	if errors.Is(err, services.ErrInvalidPhase) || errors.Is(err, services.ErrPaused) {
		k.logger.Debug("keeper skipped market", zap.String("action", action), zap.String("market_id", marketID), zap.Error(err))
		return
	}
	k.logger.Warn("keeper action failed", zap.String("action", action), zap.String("market_id", marketID), zap.Error(err))
}
