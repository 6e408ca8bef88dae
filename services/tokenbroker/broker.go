package tokenbroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// expirySkew treats tokens expiring within this window as already expired
// so callers never hand a just-about-dead credential to a request.
const expirySkew = 60 * time.Second

var ErrStorageDirRequired = errors.New("storage directory not provided")

// TokenRecord is the persisted provider credential.
type TokenRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Refresher exchanges a refresh token for a fresh record. Implemented by
// ProviderClient.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenRecord, error)
}

// Broker owns the provider credential: it persists the token record,
// refreshes it when expired or near expiry, and invalidates it when the
// provider rejects a refresh. Consumers read the credential immediately
// before each request and never cache it.
type Broker struct {
	mu        sync.Mutex
	fs        afero.Fs
	path      string
	refresher Refresher
	record    *TokenRecord
}

// NewBroker loads any persisted token from storageDir/token.json.
func NewBroker(fs afero.Fs, storageDir string, refresher Refresher) (*Broker, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if err := fs.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}

	b := &Broker{
		fs:        fs,
		path:      filepath.Join(storageDir, "token.json"),
		refresher: refresher,
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// IsAuthenticated reports whether a credential is stored. It does not
// guarantee the credential is still accepted by the provider.
func (b *Broker) IsAuthenticated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record != nil
}

// GetValidAccessToken returns a usable credential, refreshing first if the
// stored one is expired or near expiry. Returns ("", false) when no
// credential is available; callers surface a "connect your account" state
// rather than retrying in a loop.
func (b *Broker) GetValidAccessToken(ctx context.Context) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.record == nil {
		return "", false
	}
	if time.Until(b.record.ExpiresAt) > expirySkew {
		return b.record.AccessToken, true
	}

	refreshed, err := b.refresher.Refresh(ctx, b.record.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			log.Printf("[tokenbroker] refresh rejected, clearing stored credential")
			b.record = nil
			if err := b.saveLocked(); err != nil {
				log.Printf("[tokenbroker] clear credential: %v", err)
			}
			return "", false
		}
		// Transient failure: keep the record, report unavailable for now.
		log.Printf("[tokenbroker] refresh failed: %v", err)
		return "", false
	}

	b.record = &refreshed
	if err := b.saveLocked(); err != nil {
		log.Printf("[tokenbroker] persist refreshed token: %v", err)
	}
	return refreshed.AccessToken, true
}

// SetToken stores a freshly obtained credential (the OAuth callback path).
func (b *Broker) SetToken(record TokenRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = &record
	return b.saveLocked()
}

// Clear drops the stored credential (the disconnect path).
func (b *Broker) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = nil
	return b.saveLocked()
}

func (b *Broker) load() error {
	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read token file: %w", err)
	}
	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse token file: %w", err)
	}
	if record.AccessToken != "" {
		b.record = &record
	}
	return nil
}

func (b *Broker) saveLocked() error {
	if b.record == nil {
		if err := b.fs.Remove(b.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(b.record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}
	if err := afero.WriteFile(b.fs, b.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
