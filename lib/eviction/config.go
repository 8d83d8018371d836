package eviction

import (
	"fmt"
	"time"
)

// DefaultSleepInterval is the pause between two periodic evictor runs
const DefaultSleepInterval = 15 * time.Minute

// Config is read once when the Manager is created
type Config struct {
	SleepInterval time.Duration
	// PeriodicEnabled starts the periodic evictor in Start. Without it,
	// eviction only runs when RunEvictor or DoEvictionOn is called.
	PeriodicEnabled bool
	// ElementTTITTLEnabled treats every map as TTI/TTL filtered, so entries
	// with their own expiry are honored even if the map has none
	ElementTTITTLEnabled bool
	// LoggingEnabled turns on verbose progress logging
	LoggingEnabled bool
}

func DefaultConfig() Config {
	return Config{
		SleepInterval:   DefaultSleepInterval,
		PeriodicEnabled: true,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("sleep=%s periodic=%t element-tti-ttl=%t logging=%t",
		c.SleepInterval, c.PeriodicEnabled, c.ElementTTITTLEnabled, c.LoggingEnabled)
}
