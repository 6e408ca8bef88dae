package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"

	"slideflow/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUserIDRequired     = errors.New("user id is required")
)

// RetryPolicy controls how persistence failures are retried. The policy is
// configurable rather than hard-coded; deployments on flaky storage can
// raise the attempt cap.
type RetryPolicy struct {
	Attempts     uint
	InitialDelay time.Duration
	// Delay grows exponentially between attempts.
}

// DefaultRetryPolicy is 3 attempts starting at 250ms, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialDelay: 250 * time.Millisecond}
}

// Service manages persistence and retrieval of per-user slideshow
// preferences, and notifies listeners when a user's preferences change.
type Service struct {
	mu        sync.RWMutex
	fs        afero.Fs
	path      string
	policy    RetryPolicy
	prefs     map[string]models.Preferences
	listeners []func(userID string, prefs models.Preferences)
}

// NewService creates a settings service storing preferences.json inside
// the provided directory.
func NewService(fs afero.Fs, storageDir string, policy RetryPolicy) (*Service, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if err := fs.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	if policy.Attempts == 0 {
		policy = DefaultRetryPolicy()
	}

	svc := &Service{
		fs:     fs,
		path:   filepath.Join(storageDir, "preferences.json"),
		policy: policy,
		prefs:  make(map[string]models.Preferences),
	}
	if err := svc.load(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Subscribe registers fn to be called after every successful preference
// update for a user.
func (s *Service) Subscribe(fn func(userID string, prefs models.Preferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns the user's preferences merged with defaults. Users with no
// stored overrides get the defaults.
func (s *Service) Get(userID string) (models.Preferences, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Preferences{}, ErrUserIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if prefs, ok := s.prefs[userID]; ok {
		return prefs.Normalize(), nil
	}
	return models.DefaultPreferences(), nil
}

// Update validates, persists, and broadcasts new preferences for a user.
// Persistence is retried per the configured policy before failing.
func (s *Service) Update(userID string, prefs models.Preferences) (models.Preferences, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Preferences{}, ErrUserIDRequired
	}
	prefs = prefs.Normalize()

	s.mu.Lock()
	previous, hadPrevious := s.prefs[userID]
	s.prefs[userID] = prefs

	err := retry.Do(
		s.saveLocked,
		retry.Attempts(s.policy.Attempts),
		retry.Delay(s.policy.InitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// Roll back the in-memory state so reads stay consistent with disk.
		if hadPrevious {
			s.prefs[userID] = previous
		} else {
			delete(s.prefs, userID)
		}
		s.mu.Unlock()
		return models.Preferences{}, fmt.Errorf("persist preferences: %w", err)
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(userID, prefs)
	}
	return prefs, nil
}

// Delete removes a user's stored overrides (used when an account is
// deleted). Missing users are not an error.
func (s *Service) Delete(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[userID]; !ok {
		return nil
	}
	delete(s.prefs, userID)
	return s.saveLocked()
}

func (s *Service) load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &s.prefs); err != nil {
		log.Printf("[settings] preferences file corrupt, starting fresh: %v", err)
		s.prefs = make(map[string]models.Preferences)
	}
	return nil
}

func (s *Service) saveLocked() error {
	data, err := json.MarshalIndent(s.prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
