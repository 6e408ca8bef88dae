package handlers

import (
	"net/http"
	"os"
	"strings"
	"sync"
)

var (
	version     string
	versionOnce sync.Once
)

type VersionHandler struct{}

type VersionResponse struct {
	Version string `json:"version"`
}

func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// Version reads the release version from version.txt, cached after the
// first read.
func Version() string {
	versionOnce.Do(func() {
		for _, path := range []string{"version.txt", "/app/version.txt"} {
			if data, err := os.ReadFile(path); err == nil {
				version = strings.TrimSpace(string(data))
				return
			}
		}
		version = "dev"
	})
	return version
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: Version()})
}
