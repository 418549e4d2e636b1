package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrUsernameExists     = errors.New("username already exists")
)

type Service struct {
	repo Repository
	jwt  *JWTManager
}

func NewService(repo Repository, jwt *JWTManager) *Service {
	return &Service{
		repo: repo,
		jwt:  jwt,
	}
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, ErrUserDisabled
	}

	token, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwt.AccessTokenTTL().Seconds()),
		User: UserView{
			ID:          user.ID,
			Username:    user.Username,
			Permissions: ParsePermissions(user.Permissions),
		},
	}, nil
}

// CreateUser stores a new enabled user. If the username exists its
// permissions are replaced instead when overwrite is set.
func (s *Service) CreateUser(ctx context.Context, username, password string, permissions []string, overwrite bool) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	perms := strings.Join(ParsePermissions(strings.Join(permissions, ",")), ",")

	existing, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil && !overwrite:
		return nil, ErrUsernameExists
	case err == nil:
		if err := s.repo.UpdatePermissions(ctx, existing.ID, perms); err != nil {
			return nil, err
		}
		existing.Permissions = perms
		return existing, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, &User{
		Username:     username,
		PasswordHash: string(hash),
		Permissions:  perms,
		Enabled:      true,
	})
}
