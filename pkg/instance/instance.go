package instance

import (
	"os"
	"strings"
)

// EnvInstanceID names the process in logs when several cartd run side by side.
const EnvInstanceID = "GOMARKETPLACE_INSTANCE_ID"

// GetID returns the configured instance id, then the hostname, then "local".
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
