package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"slideflow/models"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrStorageDirRequired = errors.New("storage directory not provided")
)

const (
	// DefaultSessionDuration is the lifetime of a login session.
	DefaultSessionDuration = 30 * 24 * time.Hour

	// tokenLength is the number of random bytes behind a session token.
	tokenLength = 32

	cleanupInterval = time.Hour
)

// Service manages bearer session tokens for authenticated accounts.
type Service struct {
	mu       sync.RWMutex
	fs       afero.Fs
	path     string
	sessions map[string]models.Session
	duration time.Duration
	stop     chan struct{}
}

// NewService creates a sessions service persisting to sessions.json in
// storageDir.
func NewService(fs afero.Fs, storageDir string, duration time.Duration) (*Service, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	if err := fs.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	svc := &Service{
		fs:       fs,
		path:     filepath.Join(storageDir, "sessions.json"),
		sessions: make(map[string]models.Session),
		duration: duration,
		stop:     make(chan struct{}),
	}
	if err := svc.load(); err != nil {
		return nil, err
	}

	go svc.cleanupLoop()
	return svc, nil
}

// Create issues a new session for the given account.
func (s *Service) Create(account models.Account, userAgent, ipAddress string) (models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return models.Session{}, err
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:     token,
		AccountID: account.ID,
		IsMaster:  account.IsMaster,
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	s.mu.Lock()
	s.sessions[token] = session
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, token)
		s.mu.Unlock()
		return models.Session{}, err
	}
	s.mu.Unlock()
	return session, nil
}

// Validate checks a token and returns its session.
func (s *Service) Validate(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrInvalidToken
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	if session.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, token)
		s.saveLocked()
		s.mu.Unlock()
		return models.Session{}, ErrSessionExpired
	}
	return session, nil
}

// Revoke invalidates one session token (logout).
func (s *Service) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	return s.saveLocked()
}

// RevokeAccount invalidates every session belonging to an account (used
// when the account is deleted or its password changes).
func (s *Service) RevokeAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.AccountID == accountID {
			delete(s.sessions, token)
		}
	}
	return s.saveLocked()
}

// Close stops the background cleanup loop.
func (s *Service) Close() {
	close(s.stop)
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			changed := false
			for token, session := range s.sessions {
				if session.IsExpired() {
					delete(s.sessions, token)
					changed = true
				}
			}
			if changed {
				s.saveLocked()
			}
			s.mu.Unlock()
		}
	}
}

func (s *Service) load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sessions: %w", err)
	}
	if err := json.Unmarshal(data, &s.sessions); err != nil {
		return fmt.Errorf("parse sessions: %w", err)
	}
	return nil
}

func (s *Service) saveLocked() error {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
