package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
)

// CPUSampler returns aggregate CPU utilization as a percentage in [0, 100].
type CPUSampler func(ctx context.Context) (float64, error)

// GopsutilSampler samples aggregate CPU utilization since the previous call.
func GopsutilSampler() CPUSampler {
	return func(ctx context.Context) (float64, error) {
		pcts, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, err
		}
		if len(pcts) == 0 {
			return 0, errors.New("no cpu sample available")
		}
		return pcts[0], nil
	}
}

// AdaptOptions configures the quality adaptation loop.
type AdaptOptions struct {
	Interval  time.Duration
	HighWater float64 // step running sessions down when CPU is at or above
	LowWater  float64 // step them back up when CPU is at or below
}

// RunAdaptation periodically samples CPU pressure and adjusts running
// sessions' quality tiers: down toward the lowest tier above the high-water
// mark, back up toward each session's requested tier below the low-water
// mark. Blocks until ctx is done.
func (s *Supervisor) RunAdaptation(ctx context.Context, opts AdaptOptions, sample CPUSampler) {
	if sample == nil {
		sample = GopsutilSampler()
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	s.logger.Info("adaptation loop started",
		zap.Duration("interval", opts.Interval),
		zap.Float64("high_water", opts.HighWater),
		zap.Float64("low_water", opts.LowWater),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pct, err := sample(ctx)
		if err != nil {
			s.logger.Warn("cpu sample failed", zap.Error(err))
			continue
		}
		switch {
		case pct >= opts.HighWater:
			s.adaptAll(pct, false)
		case pct <= opts.LowWater:
			s.adaptAll(pct, true)
		}
	}
}

// adaptAll walks live sessions and steps each running one up or down a tier.
func (s *Supervisor) adaptAll(pct float64, up bool) {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		s.adaptSession(sess, pct, up)
	}
}

func (s *Supervisor) adaptSession(sess *Session, pct float64, up bool) {
	sess.mu.Lock()
	if sess.status != StatusRunning {
		sess.mu.Unlock()
		return
	}
	cur := sess.profile.Tier
	var target int
	var ok bool
	if up {
		target, ok = s.profiles.StepUp(cur)
		// Never exceed what the operator asked for.
		if ok && target > sess.requestedTier {
			ok = false
		}
	} else {
		target, ok = s.profiles.StepDown(cur)
	}
	if !ok {
		sess.mu.Unlock()
		return
	}
	err := s.swapProfileLocked(sess, s.profiles.Resolve(target))
	sess.mu.Unlock()

	if err != nil {
		s.finalizeCrashedSwap(sess, err)
		return
	}
	s.persist(func(ctx context.Context, st Store) error {
		return st.UpdateTier(ctx, sess.ID, target)
	})
	s.logger.Info("quality adapted",
		zap.String("session_id", sess.ID.String()),
		zap.Float64("cpu_pct", pct),
		zap.Int("from_tier", cur),
		zap.Int("to_tier", target),
	)
	if up {
		s.notifyOwner(sess.OwnerID, fmt.Sprintf(
			"CPU load eased (%.0f%%): stream %s quality raised to %dp.", pct, shortID(sess.ID), target))
	} else {
		s.notifyOwner(sess.OwnerID, fmt.Sprintf(
			"High CPU load (%.0f%%): stream %s quality lowered to %dp.", pct, shortID(sess.ID), target))
	}
}
