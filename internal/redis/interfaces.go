package redis

import (
	"shuttle/internal/service"
)

// Ensure concrete types implement interfaces.
var (
	_ service.TripCache = (*CacheStore)(nil)
)
