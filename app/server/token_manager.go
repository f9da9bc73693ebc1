package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"stridepoints/app/storage"
	"stridepoints/app/storage/models"
	"stridepoints/app/strava"
	"time"
)

// refreshBuffer is how close to expiry a token may get before a refresh is
// forced.
const refreshBuffer = 60 * time.Second

type TokenManager struct {
	DB     storage.Store
	Strava strava.API
}

// EnsureValidToken returns an access token good for at least refreshBuffer.
// The fast path does no I/O. On refresh the rotated refresh token and new
// expiry are always persisted. An invalid grant deauthorizes the user locally
// and returns ErrDeauthorized; any other refresh failure returns ErrTransient
// with token state untouched.
func (tm *TokenManager) EnsureValidToken(ctx context.Context, user *models.User) (string, error) {
	if !user.TokenExpiringWithin(refreshBuffer) {
		return user.AccessToken, nil
	}

	slog.Info("access token expiring, refreshing", "user_id", user.ID)
	authData, err := tm.Strava.RefreshAccessToken(ctx, user.RefreshToken)
	if err != nil {
		if errors.Is(err, strava.ErrInvalidGrant) {
			slog.Warn("refresh token invalid, deauthorizing user", "user_id", user.ID)
			if derr := tm.Deauthorize(user); derr != nil {
				slog.Error("error while clearing tokens on deauthorization", "user_id", user.ID, "err", derr)
			}
			return "", ErrDeauthorized
		}
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}

	user.AccessToken = authData.AccessToken
	user.RefreshToken = authData.RefreshToken
	user.TokenExpiresAt = &authData.ExpiresAt
	user.IsAuthorized = true
	if err := tm.DB.UpdateUserTokens(user); err != nil {
		// The in-memory token is still usable for this unit of work.
		slog.Error("error while persisting refreshed tokens", "user_id", user.ID, "err", err)
	}
	return authData.AccessToken, nil
}

// Deauthorize clears the user's token set and authorization flag, both in
// memory and in the store. Idempotent.
func (tm *TokenManager) Deauthorize(user *models.User) error {
	user.AccessToken = ""
	user.RefreshToken = ""
	user.TokenExpiresAt = nil
	user.Scope = ""
	user.IsAuthorized = false
	return tm.DB.ClearUserTokens(user.ID)
}

// SweepAll refreshes soon-to-expire tokens for every authorized user. Run
// nightly by cron and on demand from the admin endpoint. Per-user failures
// are logged and do not stop the sweep.
func (tm *TokenManager) SweepAll(ctx context.Context) (refreshed, failed int, err error) {
	users, err := tm.DB.GetAllUsers()
	if err != nil {
		return 0, 0, err
	}
	for _, u := range users {
		if !u.IsAuthorized {
			continue
		}
		if _, terr := tm.EnsureValidToken(ctx, u); terr != nil {
			slog.Error("token sweep failed for user", "user_id", u.ID, "err", terr)
			failed++
			continue
		}
		refreshed++
	}
	slog.Info("token sweep finished", "ok", refreshed, "failed", failed)
	return refreshed, failed, nil
}
