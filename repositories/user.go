//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"talk-hub/domain"
	apperrors "talk-hub/errors"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) error
	GetUserByUsername(username string) (domain.Identity, error)
}

// UserRepository stores identities in BadgerDB behind a small storage
// interface, so a durable backend can replace the in-memory one without
// touching the protocol layer.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// storedUser is the on-disk shape of an identity.
type storedUser struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// CreateUser persists a new identity. The existence check and the insert
// run inside a single transaction, so concurrent registrations of the same
// username leave exactly one winner and ErrUserAlreadyExists for the rest.
func (u UserRepository) CreateUser(username, hashedPassword string) error {
	data, err := json.Marshal(storedUser{
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	for {
		err := u.db.Update(func(txn *badger.Txn) error {
			key := []byte("user:" + username)
			if _, err := txn.Get(key); err == nil {
				return apperrors.ErrUserAlreadyExists
			}
			return txn.Set(key, data)
		})
		// Concurrent registrations of the same username conflict at commit
		// time; retrying makes the loser observe the winner's insert.
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// GetUserByUsername retrieves an identity. An unknown username yields
// ErrInvalidCredentials, never a distinct not-found error, to avoid
// leaking which identities exist.
func (u UserRepository) GetUserByUsername(username string) (domain.Identity, error) {
	var stored storedUser

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + username))
		if err != nil {
			return apperrors.ErrInvalidCredentials
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return domain.Identity{
		Username:     stored.Username,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    time.Unix(stored.CreatedAt, 0).UTC(),
	}, nil
}
