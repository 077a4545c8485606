package session

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
)

// Reap expires calls idle for longer than the idle timeout as of now.
// It returns the number of calls expired.
func (m *Manager) Reap(ctx context.Context, now time.Time) (int, error) {
	if m.idleTimeout <= 0 {
		return 0, nil
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := m.WithLock(ctx, id, func(ctx context.Context) error {
			s, err := m.store.Load(ctx, id)
			if err != nil {
				return err
			}
			if now.Sub(s.LastActivity()) < m.idleTimeout {
				return nil
			}
			if _, err := m.terminate(ctx, id, domain.ReasonExpired); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return expired, err
		}
	}
	if expired > 0 {
		m.logger.InfoContext(ctx, "expired idle calls", "count", expired, "idle_timeout", m.idleTimeout)
	}
	return expired, nil
}

// RunReaper calls Reap every interval until ctx is done. It returns
// immediately when idle expiry is disabled.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) error {
	if m.idleTimeout <= 0 || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Reap(ctx, m.engine.Now()); err != nil && ctx.Err() == nil {
				m.logger.WarnContext(ctx, "reaper pass failed", "err", err)
			}
		}
	}
}
