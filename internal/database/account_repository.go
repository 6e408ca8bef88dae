package database

import (
	"database/sql"
	"errors"
	"fmt"

	"slideflow/models"
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("not found")

// AccountRepository persists accounts in sqlite.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a repository over an opened database.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(a models.Account) error {
	_, err := r.db.Exec(
		`INSERT INTO accounts (id, username, password_hash, is_master, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, a.IsMaster, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID returns the account with the given id.
func (r *AccountRepository) GetByID(id string) (models.Account, error) {
	return r.scanOne(`SELECT id, username, password_hash, is_master, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
}

// GetByUsername returns the account with the given username.
func (r *AccountRepository) GetByUsername(username string) (models.Account, error) {
	return r.scanOne(`SELECT id, username, password_hash, is_master, created_at, updated_at
		FROM accounts WHERE username = ?`, username)
}

// List returns all accounts, master first, then by creation time.
func (r *AccountRepository) List() ([]models.Account, error) {
	rows, err := r.db.Query(`SELECT id, username, password_hash, is_master, created_at, updated_at
		FROM accounts ORDER BY is_master DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.IsMaster, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Update rewrites an account's mutable fields.
func (r *AccountRepository) Update(a models.Account) error {
	res, err := r.db.Exec(
		`UPDATE accounts SET username = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		a.Username, a.PasswordHash, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res)
}

// Delete removes an account; saved shows cascade.
func (r *AccountRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRow(res)
}

// Count returns the number of accounts.
func (r *AccountRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (r *AccountRepository) scanOne(query string, arg any) (models.Account, error) {
	var a models.Account
	err := r.db.QueryRow(query, arg).Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.IsMaster, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
