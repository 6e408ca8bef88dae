package shows

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
	"github.com/sethvargo/go-password/password"

	"slideflow/internal/database"
	"slideflow/models"
)

var (
	ErrNameRequired  = errors.New("show name is required")
	ErrShowNotFound  = errors.New("show not found")
	ErrNotShowOwner  = errors.New("show belongs to another account")
	ErrTokenNotFound = errors.New("share token not found")
)

const shareTokenLength = 24

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Service manages saved shows, each a frozen snapshot of slideshow
// preferences that can be reloaded or shared by token.
type Service struct {
	repo *database.ShowRepository
}

// NewService creates the shows service.
func NewService(repo *database.ShowRepository) *Service {
	return &Service{repo: repo}
}

// Save stores a named snapshot of the given preferences for ownerID.
func (s *Service) Save(ownerID, name string, prefs models.Preferences) (models.SavedShow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SavedShow{}, ErrNameRequired
	}

	token, err := password.Generate(shareTokenLength, 8, 0, true, false)
	if err != nil {
		return models.SavedShow{}, fmt.Errorf("generate share token: %w", err)
	}

	now := time.Now().UTC()
	show := models.SavedShow{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		Slug:       Slugify(name),
		ShareToken: token,
		Settings:   prefs.Normalize(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(show); err != nil {
		return models.SavedShow{}, err
	}
	return show, nil
}

// Get returns one show, verifying ownership.
func (s *Service) Get(ownerID, showID string) (models.SavedShow, error) {
	show, err := s.repo.GetByID(showID)
	if errors.Is(err, database.ErrNotFound) {
		return models.SavedShow{}, ErrShowNotFound
	}
	if err != nil {
		return models.SavedShow{}, err
	}
	if show.OwnerID != ownerID {
		return models.SavedShow{}, ErrNotShowOwner
	}
	return show, nil
}

// GetShared resolves a share token to its show with the owner stripped.
func (s *Service) GetShared(token string) (models.SavedShow, error) {
	show, err := s.repo.GetByShareToken(token)
	if errors.Is(err, database.ErrNotFound) {
		return models.SavedShow{}, ErrTokenNotFound
	}
	if err != nil {
		return models.SavedShow{}, err
	}
	return show.Public(), nil
}

// List returns an account's shows, newest first.
func (s *Service) List(ownerID string) ([]models.SavedShow, error) {
	return s.repo.ListByOwner(ownerID)
}

// Rename updates a show's name and slug.
func (s *Service) Rename(ownerID, showID, name string) (models.SavedShow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SavedShow{}, ErrNameRequired
	}
	show, err := s.Get(ownerID, showID)
	if err != nil {
		return models.SavedShow{}, err
	}
	show.Name = name
	show.Slug = Slugify(name)
	show.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(show); err != nil {
		return models.SavedShow{}, err
	}
	return show, nil
}

// UpdateSettings replaces a show's frozen preference snapshot.
func (s *Service) UpdateSettings(ownerID, showID string, prefs models.Preferences) (models.SavedShow, error) {
	show, err := s.Get(ownerID, showID)
	if err != nil {
		return models.SavedShow{}, err
	}
	show.Settings = prefs.Normalize()
	show.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(show); err != nil {
		return models.SavedShow{}, err
	}
	return show, nil
}

// Delete removes one of the account's shows.
func (s *Service) Delete(ownerID, showID string) error {
	if _, err := s.Get(ownerID, showID); err != nil {
		return err
	}
	return s.repo.Delete(showID)
}

// Slugify folds a show name to a url-safe ascii slug.
func Slugify(name string) string {
	folded := strings.ToLower(unidecode.Unidecode(name))
	slug := strings.Trim(slugStrip.ReplaceAllString(folded, "-"), "-")
	if slug == "" {
		return "show"
	}
	return slug
}
