package models

import (
	"time"
)

type User struct {
	ID                int64  `json:"id,omitempty"`
	StravaId          int64  `json:"strava_id"`
	Firstname         string `json:"firstname"`
	Lastname          string `json:"lastname"`
	ProfilePictureUrl string `json:"profile_picture_url"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	TokenExpiresAt    *int64 `json:"token_expires_at"`
	Scope             string `json:"scope"`
	IsAuthorized      bool   `json:"is_authorized"`
}

// TokenExpiringWithin reports whether the stored access token expires before
// now + buffer. A user with no stored expiry always needs a refresh.
func (u User) TokenExpiringWithin(buffer time.Duration) bool {
	if u.TokenExpiresAt == nil {
		return true
	}
	return *u.TokenExpiresAt <= time.Now().Add(buffer).Unix()
}

func (u User) DisplayName() string {
	if u.Lastname == "" {
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}
