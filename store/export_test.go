package store

import "time"

// SetClock replaces the cache clock in tests.
func SetClock(c *CachedConfigs, now func() time.Time) { c.now = now }
