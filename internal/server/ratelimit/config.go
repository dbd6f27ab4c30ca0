package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/idea-evaluator/internal/types"
)

const defaultLimit = 1000

// EndpointConfig budgets one endpoint. Endpoints sharing a Group share a bucket.
type EndpointConfig struct {
	Group  string        // bucket name; defaults to method+path
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method; empty matches any
	Limit  int           // tokens refilled per Window
	Window time.Duration // refill window
	Burst  int           // bucket capacity; defaults to Limit
	Cost   int           // tokens charged per request; defaults to 1
}

func (e *EndpointConfig) cost() int {
	if e.Cost <= 0 {
		return 1
	}
	return e.Cost
}

func (e *EndpointConfig) key(path, method string) string {
	if e.Group != "" {
		return e.Group
	}
	return method + " " + path
}

// LoadConfig reads rate limiting configuration from RATE_LIMIT_* environment variables
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", defaultLimit),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         getEnvDuration("RATE_LIMIT_IDLE_TTL", time.Hour),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: EndpointConfigs(
			getEnvInt("RATE_LIMIT_EVALUATE_CALLS_PER_HOUR", 120),
			getEnvInt("RATE_LIMIT_ENHANCE_CALLS_PER_HOUR", 60),
		),
	}
}

// DefaultEndpointConfigs returns the built-in completion budgets
func DefaultEndpointConfigs() []EndpointConfig {
	return EndpointConfigs(120, 60)
}

// EndpointConfigs budgets the endpoints that spend completion calls. Limits count
// calls per hour; an evaluation costs one call per criterion.
func EndpointConfigs(evaluateCallsPerHour, enhanceCallsPerHour int) []EndpointConfig {
	evalCost := len(types.Criteria())
	evaluate := EndpointConfig{
		Group:  "evaluate",
		Method: "POST",
		Limit:  evaluateCallsPerHour,
		Window: time.Hour,
		Burst:  5 * evalCost,
		Cost:   evalCost,
	}
	stream := evaluate
	evaluate.Path = "/api/evaluate"
	stream.Path = "/api/evaluate/stream"

	return []EndpointConfig{
		evaluate,
		stream,
		{Group: "enhance", Path: "/api/enhance", Method: "POST", Limit: enhanceCallsPerHour, Window: time.Hour, Burst: 10},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of client addresses
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
