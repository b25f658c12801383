package cache

import "time"

// startJanitor begins the periodic expired-entry sweep. It is a no-op when
// a sweep is already running.
func (c *cache[V]) startJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	c.jmu.Lock()
	defer c.jmu.Unlock()
	if c.jstop != nil {
		return
	}
	stop := make(chan struct{})
	c.jstop = stop

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.ClearExpired()
			case <-stop:
				return
			}
		}
	}()
}

// stopJanitor cancels the sweep if one is running.
func (c *cache[V]) stopJanitor() {
	c.jmu.Lock()
	defer c.jmu.Unlock()
	if c.jstop != nil {
		close(c.jstop)
		c.jstop = nil
	}
}

// restartJanitor re-reads the cleanup settings and reschedules the sweep.
// Called by UpdateConfig when AutoCleanup or CleanupInterval changed.
func (c *cache[V]) restartJanitor() {
	c.stopJanitor()

	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	if cfg.AutoCleanup && !c.closed.Load() {
		c.startJanitor(cfg.CleanupInterval)
	}
}
