package instance

import (
	"os"

	"github.com/angelmondragon/stockledger-backend/pkg/env"
)

// GetID identifies the running worker process in logs and lock diagnostics.
// WORKER_ID wins, then the hostname (the pod name on Cloud Run / k8s).
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
