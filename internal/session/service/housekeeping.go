package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
)

// Housekeeper periodically deletes expired refresh records so the store
// does not grow without bound. Revoked and consumed records stay until they
// expire, which keeps replay detection working for the whole refresh TTL.
type Housekeeper struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Clock    clockx.Clock
	Metrics  *metrics.Metrics

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeeper defaults a non-positive interval to one hour.
func NewHousekeeper(s store.Store, logger *slog.Logger, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeper{
		Store:    s,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker. It purges once immediately.
func (h *Housekeeper) Start() {
	go h.run()
	h.Logger.Info("housekeeper started", "interval", h.Interval)
}

// Stop ends the worker and waits for an in-flight purge to finish.
func (h *Housekeeper) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.doneCh
		h.Logger.Info("housekeeper stopped")
	})
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.sweep()
	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := h.RunOnce(ctx); err != nil {
		h.Logger.Error("failed to purge expired refresh tokens", "error", err)
	}
}

// RunOnce purges every record expired at the clock's now.
func (h *Housekeeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := h.Store.RefreshTokens().PurgeExpired(ctx, clockOrSystem(h.Clock).Now())
	if err != nil {
		return 0, err
	}
	h.Metrics.Purged(n)
	h.Logger.Debug("purged expired refresh tokens", "deleted", n)
	return n, nil
}
