package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeleted     = errors.New("account has been deleted")
	ErrEmailTaken         = errors.New("email is already registered")
)

// UserService handles authentication against the stored password
// digests.
type UserService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(st *store.Store) *UserService {
	return &UserService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// Login verifies credentials and returns the user
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleDeleted {
		return nil, ErrAccountDeleted
	}
	if !util.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return user, nil
}

// Register creates a user with the role "user"
func (s *UserService) Register(ctx context.Context, username, email, password, address, contact string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidCredentials)
	}

	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: util.HashPassword(password),
		Address:  address,
		Contact:  contact,
		Role:     models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// GetByID loads a user
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}
