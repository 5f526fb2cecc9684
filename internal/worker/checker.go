// Package worker runs periodic consistency checks against the store.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRepairer restores the single-default wishlist invariant.
type DefaultRepairer interface {
	RepairDefaults(ctx context.Context) (int, error)
}

type Checker struct {
	lists    DefaultRepairer
	interval time.Duration
	log      logrus.FieldLogger
}

func NewChecker(lists DefaultRepairer, interval time.Duration, log logrus.FieldLogger) *Checker {
	return &Checker{
		lists:    lists,
		interval: interval,
		log:      log.WithField("component", "worker"),
	}
}

// Start runs a check immediately and then every interval until ctx is done.
// A non-positive interval disables the worker.
func (c *Checker) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.log.Info("Default wishlist auditor disabled")
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.log.WithField("interval", c.interval.String()).Info("Default wishlist auditor started")

	c.check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("Default wishlist auditor stopped")
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *Checker) check(ctx context.Context) {
	repaired, err := c.lists.RepairDefaults(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.WithError(err).Error("Default wishlist audit failed")
		}
		return
	}
	if repaired > 0 {
		c.log.WithField("repaired", repaired).Warn("Restored missing default wishlists")
	}
}
