package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"slideflow/models"
)

// ShowRepository persists saved shows in sqlite. The frozen preference
// snapshot is stored as a JSON column; nothing queries inside it.
type ShowRepository struct {
	db *sql.DB
}

// NewShowRepository creates a repository over an opened database.
func NewShowRepository(db *sql.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

// Create inserts a new saved show.
func (r *ShowRepository) Create(s models.SavedShow) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("marshal show settings: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO saved_shows (id, owner_id, name, slug, share_token, settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Name, s.Slug, s.ShareToken, string(settings), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert show: %w", err)
	}
	return nil
}

// GetByID returns one saved show.
func (r *ShowRepository) GetByID(id string) (models.SavedShow, error) {
	return r.scanOne(`SELECT id, owner_id, name, slug, share_token, settings, created_at, updated_at
		FROM saved_shows WHERE id = ?`, id)
}

// GetByShareToken returns the show behind a share link.
func (r *ShowRepository) GetByShareToken(token string) (models.SavedShow, error) {
	return r.scanOne(`SELECT id, owner_id, name, slug, share_token, settings, created_at, updated_at
		FROM saved_shows WHERE share_token = ?`, token)
}

// ListByOwner returns an account's saved shows, newest first.
func (r *ShowRepository) ListByOwner(ownerID string) ([]models.SavedShow, error) {
	rows, err := r.db.Query(`SELECT id, owner_id, name, slug, share_token, settings, created_at, updated_at
		FROM saved_shows WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []models.SavedShow
	for rows.Next() {
		show, err := scanShow(rows.Scan)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

// Update rewrites a show's name, slug and settings.
func (r *ShowRepository) Update(s models.SavedShow) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("marshal show settings: %w", err)
	}
	res, err := r.db.Exec(
		`UPDATE saved_shows SET name = ?, slug = ?, settings = ?, updated_at = ? WHERE id = ?`,
		s.Name, s.Slug, string(settings), s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update show: %w", err)
	}
	return requireRow(res)
}

// Delete removes one saved show.
func (r *ShowRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM saved_shows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete show: %w", err)
	}
	return requireRow(res)
}

func (r *ShowRepository) scanOne(query string, arg any) (models.SavedShow, error) {
	show, err := scanShow(r.db.QueryRow(query, arg).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavedShow{}, ErrNotFound
	}
	return show, err
}

func scanShow(scan func(dest ...any) error) (models.SavedShow, error) {
	var s models.SavedShow
	var settings string
	err := scan(&s.ID, &s.OwnerID, &s.Name, &s.Slug, &s.ShareToken, &settings, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SavedShow{}, err
		}
		return models.SavedShow{}, fmt.Errorf("scan show: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &s.Settings); err != nil {
		return models.SavedShow{}, fmt.Errorf("parse show settings: %w", err)
	}
	return s, nil
}
