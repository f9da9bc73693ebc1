package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"stridepoints/app/storage/models"
	"stridepoints/app/utils"
	"time"
)

const (
	authUrl     = "https://www.strava.com/oauth/token"
	activityUrl = "https://www.strava.com/api/v3/activities"

	tokenTimeout    = 10 * time.Second
	activityTimeout = 15 * time.Second
)

// Remote failure classes. Callers branch on these with errors.Is; anything
// else is a transient fault safe to retry later.
var (
	ErrInvalidGrant = errors.New("refresh token no longer valid")
	ErrNotFound     = errors.New("activity not found on strava")
	ErrUnauthorized = errors.New("unauthorized for activity fetch")
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var Handler HTTPClient

func init() {
	Handler = &http.Client{}
}

type Client struct {
	ClientId     string
	ClientSecret string
}

type AuthResp struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    int64       `json:"expires_at"`
	Athlete      AthleteInfo `json:"athlete"`
}

type AthleteInfo struct {
	Id            int64  `json:"id"`
	Username      string `json:"username"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	ProfileMedium string `json:"profile_medium"`
}

// activityDetail carries the extra nesting of the Strava activity payload
// that the flat local model does not.
type activityDetail struct {
	models.Activity
	Map struct {
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

type API interface {
	Authorize(ctx context.Context, code string) (*AuthResp, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthResp, error)
	GetActivity(ctx context.Context, accessToken string, activityId int64) (*models.Activity, error)
}

var _ API = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		ClientId:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
	}
}

func (c *Client) Authorize(ctx context.Context, code string) (*AuthResp, error) {
	form := c.authForm("authorization_code")
	form.Set("code", code)
	return c.auth(ctx, form)
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*AuthResp, error) {
	form := c.authForm("refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.auth(ctx, form)
}

// GetActivity fetches the full detail of one activity. 404 maps to
// ErrNotFound and 401/403 to ErrUnauthorized so the reconciler can decide
// whether local state may be touched.
func (c *Client) GetActivity(ctx context.Context, accessToken string, activityId int64) (*models.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, activityTimeout)
	defer cancel()

	reqUrl := fmt.Sprintf("%s/%d", activityUrl, activityId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		slog.Error("error occurred during request creation")
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := Handler.Do(req)
	if err != nil {
		slog.Error("error occurred during request handling", "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		slog.Warn("activity not found on strava", "activity_id", activityId)
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		slog.Error("unauthorized fetching activity", "activity_id", activityId, "status", resp.Status)
		return nil, ErrUnauthorized
	case resp.StatusCode >= 300:
		slog.Error("got bad resp from strava", "status", resp.Status)
		utils.DebugResponse(resp)
		return nil, fmt.Errorf("bad response from strava: %s", resp.Status)
	}

	var detail activityDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		slog.Error("error occurred during response decode handling")
		return nil, err
	}
	activity := detail.Activity
	activity.MapPolyline = detail.Map.SummaryPolyline
	activity.StravaActivityId = activityId
	return &activity, nil
}

func (c *Client) auth(ctx context.Context, form url.Values) (*AuthResp, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := Handler.Do(req)
	if err != nil {
		slog.Error("error while fetching auth request from strava", "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("token endpoint returned failure", "status", resp.Status, "body", string(body))
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
			strings.Contains(string(body), "invalid_grant") {
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("token request failed with status %s", resp.Status)
	}

	var authResp AuthResp
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, err
	}
	if authResp.AccessToken == "" || authResp.RefreshToken == "" {
		return nil, errors.New("token response missing required fields")
	}
	return &authResp, nil
}

func (c *Client) authForm(grantType string) url.Values {
	form := url.Values{}
	form.Set("client_id", c.ClientId)
	form.Set("client_secret", c.ClientSecret)
	form.Set("grant_type", grantType)
	return form
}
