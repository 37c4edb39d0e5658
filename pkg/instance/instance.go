package instance

import "os"

// ID identifies this process in logs: the platform dyno name when set, then the hostname.
func ID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
