// Package instance names the running process for logs and lock ownership.
package instance

import "os"

const fallbackID = "station-0"

// GetID prefers STATION_INSTANCE_ID, then the hostname (the pod name on
// Kubernetes and Cloud Run).
func GetID() string {
	if id := os.Getenv("STATION_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
