package accounts

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"slideflow/internal/database"
	"slideflow/models"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCannotDeleteMaster = errors.New("cannot delete the master account")
)

const minPasswordLength = 8

// Service manages user accounts on top of the sqlite repository.
type Service struct {
	repo *database.AccountRepository
}

// NewService creates the accounts service and bootstraps the master
// account on first run. The generated master password is logged exactly
// once; there is no static default.
func NewService(repo *database.AccountRepository) (*Service, error) {
	svc := &Service{repo: repo}
	if err := svc.ensureMasterAccount(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ensureMasterAccount() error {
	count, err := s.repo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	generated, err := password.Generate(16, 4, 0, false, false)
	if err != nil {
		return fmt.Errorf("generate master password: %w", err)
	}
	account, err := s.create(models.MasterAccountUsername, generated, true)
	if err != nil {
		return fmt.Errorf("bootstrap master account: %w", err)
	}
	log.Printf("[accounts] created master account %q with initial password: %s", account.Username, generated)
	log.Printf("[accounts] change this password after first login")
	return nil
}

// Register creates a new regular account.
func (s *Service) Register(username, plainPassword string) (models.Account, error) {
	return s.create(username, plainPassword, false)
}

func (s *Service) create(username, plainPassword string, master bool) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, ErrUsernameRequired
	}
	if plainPassword == "" {
		return models.Account{}, ErrPasswordRequired
	}
	if len(plainPassword) < minPasswordLength {
		return models.Account{}, ErrPasswordTooShort
	}

	if _, err := s.repo.GetByUsername(username); err == nil {
		return models.Account{}, ErrUsernameExists
	} else if !errors.Is(err, database.ErrNotFound) {
		return models.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		IsMaster:     master,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(account); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// Authenticate verifies a username/password pair.
func (s *Service) Authenticate(username, plainPassword string) (models.Account, error) {
	account, err := s.repo.GetByUsername(strings.TrimSpace(username))
	if errors.Is(err, database.ErrNotFound) {
		// Burn a comparison anyway so missing and wrong usernames take the
		// same time.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(plainPassword))
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(plainPassword)) != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Get returns one account.
func (s *Service) Get(id string) (models.Account, error) {
	account, err := s.repo.GetByID(id)
	if errors.Is(err, database.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	return account, err
}

// List returns all accounts, master first.
func (s *Service) List() ([]models.Account, error) {
	return s.repo.List()
}

// ChangePassword sets a new password for an account.
func (s *Service) ChangePassword(id, plainPassword string) error {
	if plainPassword == "" {
		return ErrPasswordRequired
	}
	if len(plainPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	account, err := s.Get(id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.UpdatedAt = time.Now().UTC()
	return s.repo.Update(account)
}

// Delete removes a regular account. The master account cannot be deleted.
func (s *Service) Delete(id string) error {
	account, err := s.Get(id)
	if err != nil {
		return err
	}
	if account.IsMaster {
		return ErrCannotDeleteMaster
	}
	return s.repo.Delete(id)
}
