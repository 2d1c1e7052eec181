// Package mockstorage provides a testify-based mock implementation of the
// storage interface used by the router package. It is used in handler
// tests to simulate storage failures.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/usersvc/internal/models"
)

// StorageMock is a testify mock implementing the storage interface
// consumed by the router.
type StorageMock struct {
	mock.Mock
}

// ListUsers mocks the paginated list operation.
func (m *StorageMock) ListUsers(ctx context.Context, offset, limit int) ([]models.User, error) {
	args := m.Called(ctx, offset, limit)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

// GetUser mocks fetching a user by id.
func (m *StorageMock) GetUser(ctx context.Context, userID int) (*models.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Bool(1), args.Error(2)
}

// CreateUser mocks inserting a new user.
func (m *StorageMock) CreateUser(
	ctx context.Context,
	name,
	surname,
	password string,
) (*models.User, error) {
	args := m.Called(ctx, name, surname, password)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Error(1)
}

// UpdateUser mocks the partial update operation.
func (m *StorageMock) UpdateUser(
	ctx context.Context,
	userID int,
	patch models.UserPatch,
) (*models.User, bool, error) {
	args := m.Called(ctx, userID, patch)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Bool(1), args.Error(2)
}

// DeleteUser mocks the delete operation.
func (m *StorageMock) DeleteUser(ctx context.Context, userID int) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the storage resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
