package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/bookworm-storefront/pkg/errors"
	"go.uber.org/multierr"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Credentials persists the storefront session tokens for a device profile.
type Credentials struct {
	backend   Backend
	profileID string
}

func NewCredentials(backend Backend, profileID string) (*Credentials, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("profile id required")
	}
	return &Credentials{backend: backend, profileID: profileID}, nil
}

// AccessToken returns the stored access token, or "" when none is stored.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	return c.get(ctx, AccessTokenKey)
}

// RefreshToken returns the stored refresh token, or "" when none is stored.
func (c *Credentials) RefreshToken(ctx context.Context) (string, error) {
	return c.get(ctx, RefreshTokenKey)
}

// Store saves both tokens. An empty refresh token removes any stale one.
func (c *Credentials) Store(ctx context.Context, accessToken, refreshToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}
	if err := c.backend.Set(ctx, c.profileID, AccessTokenKey, accessToken); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write access token")
	}
	if refreshToken == "" {
		if err := c.backend.Delete(ctx, c.profileID, RefreshTokenKey); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete refresh token")
		}
		return nil
	}
	if err := c.backend.Set(ctx, c.profileID, RefreshTokenKey, refreshToken); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write refresh token")
	}
	return nil
}

// Clear removes both tokens, attempting each even if the other fails.
func (c *Credentials) Clear(ctx context.Context) error {
	err := multierr.Combine(
		c.backend.Delete(ctx, c.profileID, AccessTokenKey),
		c.backend.Delete(ctx, c.profileID, RefreshTokenKey),
	)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "clear credentials")
	}
	return nil
}

func (c *Credentials) get(ctx context.Context, key string) (string, error) {
	val, err := c.backend.Get(ctx, c.profileID, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read "+key)
	}
	return val, nil
}
