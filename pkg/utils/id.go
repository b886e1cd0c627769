package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns prefix_<uuid without dashes>.
func GenerateID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// InstanceID names this process on the bus: hostname plus a random suffix so
// restarted pods never reuse an id.
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	return host + "-" + uuid.NewString()[:8]
}
