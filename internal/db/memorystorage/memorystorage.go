// Package memorystorage is an in-memory implementation of the user record
// store. It mirrors the semantics of the PostgreSQL implementation
// (id assignment, timestamp rules, absence signalling) and is used in
// tests and DSN-less local runs.
package memorystorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patric-chuzhbe/usersvc/internal/models"
)

// MemoryStorage keeps the user records in a mutex-guarded map.
type MemoryStorage struct {
	mu         sync.RWMutex
	users      map[int]models.User
	nextUserID int
}

// New returns an empty in-memory storage. Ids start at 1 and are never reused.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		users:      map[int]models.User{},
		nextUserID: 1,
	}, nil
}

// ListUsers returns up to `limit` records starting at `offset`, ordered by id.
func (theStorage *MemoryStorage) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	theStorage.mu.RLock()
	defer theStorage.mu.RUnlock()

	ids := make([]int, 0, len(theStorage.users))
	for id := range theStorage.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := []models.User{}
	for i := offset; i < len(ids) && len(result) < limit; i++ {
		result = append(result, theStorage.users[ids[i]])
	}

	return result, nil
}

// GetUser fetches a user by id. The boolean reports whether the record exists.
func (theStorage *MemoryStorage) GetUser(ctx context.Context, userID int) (*models.User, bool, error) {
	theStorage.mu.RLock()
	defer theStorage.mu.RUnlock()

	usr, found := theStorage.users[userID]
	if !found {
		return nil, false, nil
	}

	return &usr, true, nil
}

// CreateUser inserts a new record with a fresh id and equal
// created_at / updated_at timestamps.
func (theStorage *MemoryStorage) CreateUser(
	ctx context.Context,
	name,
	surname,
	password string,
) (*models.User, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	now := time.Now().UTC()
	usr := models.User{
		ID:        theStorage.nextUserID,
		Name:      name,
		Surname:   surname,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	theStorage.nextUserID++
	theStorage.users[usr.ID] = usr

	return &usr, nil
}

// UpdateUser applies the non-nil fields of the patch. updated_at is
// refreshed only when at least one field actually changed in value.
func (theStorage *MemoryStorage) UpdateUser(
	ctx context.Context,
	userID int,
	patch models.UserPatch,
) (*models.User, bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	usr, found := theStorage.users[userID]
	if !found {
		return nil, false, nil
	}

	changed := false
	if patch.Name != nil && *patch.Name != usr.Name {
		usr.Name = *patch.Name
		changed = true
	}
	if patch.Surname != nil && *patch.Surname != usr.Surname {
		usr.Surname = *patch.Surname
		changed = true
	}
	if patch.Password != nil && *patch.Password != usr.Password {
		usr.Password = *patch.Password
		changed = true
	}

	if changed {
		usr.UpdatedAt = time.Now().UTC()
		theStorage.users[userID] = usr
	}

	return &usr, true, nil
}

// DeleteUser removes the record with the given id. The boolean reports
// whether a record was actually removed.
func (theStorage *MemoryStorage) DeleteUser(ctx context.Context, userID int) (bool, error) {
	theStorage.mu.Lock()
	defer theStorage.mu.Unlock()

	if _, found := theStorage.users[userID]; !found {
		return false, nil
	}

	delete(theStorage.users, userID)

	return true, nil
}

// Ping always succeeds for the in-memory storage.
func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory storage.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
