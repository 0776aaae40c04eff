package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/farmcart-sync/pkg/env"
)

const defaultDeviceID = "device-0"

// GetID returns the device identifier used to scope sync locks. It falls back
// to the hostname, then to a fixed default.
func GetID() string {
	if id := strings.TrimSpace(env.Get("FARMCART_DEVICE_ID", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return host
	}
	return defaultDeviceID
}
