package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// EvictionConfig configures the server map evictor
type EvictionConfig struct {
	// SleepSeconds is the pause between two periodic evictor runs
	SleepSeconds int64
	// Periodic starts the evictor goroutine when the server starts
	Periodic bool
	// ElementTTITTL enables per element TTI/TTL, which forces over sampling
	ElementTTITTL bool
	// Logging enables the evictor's per pass log lines
	Logging bool
}

// SleepInterval returns SleepSeconds as a duration
func (c EvictionConfig) SleepInterval() time.Duration {
	return time.Duration(c.SleepSeconds) * time.Second
}

// ServerConfig holds all configuration parameters for the dSO server.
type ServerConfig struct {
	// Lock coordinator
	GreedyLocks bool

	// Server map evictor
	Eviction EvictionConfig

	// Request limiter (requests per second, 0 disables the limiter)
	RateLimit float64
	RateBurst int

	// Request timeout
	TimeoutSecond int64

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.RateLimit > 0 {
		addField("Rate Limit", fmt.Sprintf("%g req/s (burst %d)", c.RateLimit, c.RateBurst))
	} else {
		addField("Rate Limit", "off")
	}

	// Locks
	addSection("Locks")
	addField("Greedy Leases", strconv.FormatBool(c.GreedyLocks))

	// Eviction
	addSection("Eviction")
	addField("Periodic", strconv.FormatBool(c.Eviction.Periodic))
	addField("Sleep Interval", c.Eviction.SleepInterval().String())
	addField("Element TTI/TTL", strconv.FormatBool(c.Eviction.ElementTTITTL))
	addField("Logging", strconv.FormatBool(c.Eviction.Logging))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
	// PollIntervalMillis is how often a blocked lock call asks the server for
	// new events
	PollIntervalMillis int
}

// PollInterval returns the poll interval, 50ms if unset
func (c *ClientConfig) PollInterval() time.Duration {
	if c.PollIntervalMillis <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(max(1, c.RetryCount)))
	addField("Poll Interval", c.PollInterval().String())

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
