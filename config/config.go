package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Settings is the process-level configuration. Per-user slideshow
// preferences live in the settings service, not here.
type Settings struct {
	ListenAddr string `json:"listenAddr"`
	StorageDir string `json:"storageDir"`

	// Provider holds the content-source OAuth application credentials.
	Provider ProviderSettings `json:"provider"`

	// Caption holds the caption backend configuration.
	Caption CaptionSettings `json:"caption"`

	// PollFloorSeconds is the minimum playlist poll cadence. The actual
	// cadence is 2x the slideshow interval, floored at this value.
	PollFloorSeconds int `json:"pollFloorSeconds"`
}

// ProviderSettings configures the external content provider OAuth app.
type ProviderSettings struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectUrl"`
	UserAgent    string `json:"userAgent"`
	BaseURL      string `json:"baseUrl"`
	AuthBaseURL  string `json:"authBaseUrl"`
}

// CaptionSettings configures the caption backend.
type CaptionSettings struct {
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
	APIKey  string `json:"apiKey"`
}

// DefaultSettings returns the configuration used when no file exists yet.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:       ":8475",
		StorageDir:       "./data",
		PollFloorSeconds: 10,
		Provider: ProviderSettings{
			UserAgent:   "slideflow/1.0",
			BaseURL:     "https://oauth.reddit.com",
			AuthBaseURL: "https://www.reddit.com",
		},
		Caption: CaptionSettings{
			// OpenAI-compatible chat endpoint of the Gemini API.
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:   "gemma-3n-e4b-it",
		},
	}
}

// Manager loads and persists process settings. Reads are cheap snapshot
// copies; writers go through Update.
type Manager struct {
	mu       sync.RWMutex
	fs       afero.Fs
	path     string
	settings Settings
}

// NewManager loads config.json from dir, creating it with defaults if
// missing, then applies SLIDEFLOW_* environment overrides.
func NewManager(fs afero.Fs, dir string) (*Manager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("config directory not provided")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		fs:       fs,
		path:     filepath.Join(dir, "config.json"),
		settings: DefaultSettings(),
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	m.applyEnvOverrides()
	return m, nil
}

// GetSettings returns a snapshot of the current settings.
func (m *Manager) GetSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update applies fn to the settings under the write lock and persists the
// result.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.settings)
	return m.saveLocked()
}

func (m *Manager) load() error {
	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m.saveLockedUnlocked()
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &m.settings); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (m *Manager) saveLockedUnlocked() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := afero.WriteFile(m.fs, m.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployments override file values without editing
// config.json.
func (m *Manager) applyEnvOverrides() {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set("SLIDEFLOW_LISTEN_ADDR", &m.settings.ListenAddr)
	set("SLIDEFLOW_STORAGE_DIR", &m.settings.StorageDir)
	set("SLIDEFLOW_PROVIDER_CLIENT_ID", &m.settings.Provider.ClientID)
	set("SLIDEFLOW_PROVIDER_CLIENT_SECRET", &m.settings.Provider.ClientSecret)
	set("SLIDEFLOW_PROVIDER_REDIRECT_URL", &m.settings.Provider.RedirectURL)
	set("SLIDEFLOW_CAPTION_BASE_URL", &m.settings.Caption.BaseURL)
	set("SLIDEFLOW_CAPTION_MODEL", &m.settings.Caption.Model)
	set("SLIDEFLOW_CAPTION_API_KEY", &m.settings.Caption.APIKey)
}
