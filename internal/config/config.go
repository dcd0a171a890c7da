// Package config reads the environment-variable surface spec.md §6.3
// documents as the bancho server's external configuration, the same
// typed-default idiom the teacher used for its flag.String/flag.Int
// declarations but sourced from os.Getenv since the protocol's own spec
// mandates env vars rather than CLI flags for these settings.
package config

import (
	"os"
	"strconv"
)

// Config is the full set of recognized settings, read once at startup.
type Config struct {
	HTTPPort           string
	HTTPAddress        string
	HTTPThreadCount    int
	HTTPUsingCloudflare bool

	ServerName    string
	Domain        string
	BotUsername   string
	BotUserID     int32

	MinClientYear int

	EnablePyCommand     bool
	PyCommandWhitelist  string

	IP2LocationAPIKey     string
	PerformanceServiceURL string
}

// Load builds a Config from the process environment, falling back to
// sane defaults for a single-box deployment when a variable is unset.
func Load() Config {
	return Config{
		HTTPPort:            getString("HTTP_PORT", "5001"),
		HTTPAddress:         getString("HTTP_ADDRESS", "0.0.0.0"),
		HTTPThreadCount:     getInt("HTTP_THREAD_COUNT", 32),
		HTTPUsingCloudflare: getBool("HTTP_USING_CLOUDFLARE", false),

		ServerName:  getString("PS_NAME", "bancho!"),
		Domain:      getString("PS_DOMAIN", "osu.local"),
		BotUsername: getString("PS_BOT_USERNAME", "BanchoBot"),
		BotUserID:   int32(getInt("PS_BOT_USER_ID", 3)),

		MinClientYear: getInt("PS_MINIMUM_CLIENT_YEAR", 2016),

		EnablePyCommand:    getBool("PS_ENABLE_PY_COMMAND", false),
		PyCommandWhitelist: getString("PS_PY_COMMAND_WHITELIST", ""),

		IP2LocationAPIKey:     getString("IP2LOCATION_API_KEY", ""),
		PerformanceServiceURL: getString("PERFORMANCE_SERVICE_URL", ""),
	}
}

// Addr returns the host:port pair to bind the bancho HTTP listener to.
func (c Config) Addr() string {
	return c.HTTPAddress + ":" + c.HTTPPort
}

// ClientIPHeader names the request header to trust for the caller's
// real IP, per HTTP_USING_CLOUDFLARE.
func (c Config) ClientIPHeader() string {
	if c.HTTPUsingCloudflare {
		return "CF-Connecting-IP"
	}
	return "X-Real-IP"
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
