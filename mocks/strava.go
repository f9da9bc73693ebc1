package mocks

import (
	"context"
	"stridepoints/app/storage/models"
	"stridepoints/app/strava"

	"github.com/stretchr/testify/mock"
)

type StravaAPI struct {
	mock.Mock
}

func (m *StravaAPI) Authorize(ctx context.Context, code string) (*strava.AuthResp, error) {
	args := m.Called(code)
	resp, _ := args.Get(0).(*strava.AuthResp)
	return resp, args.Error(1)
}

func (m *StravaAPI) RefreshAccessToken(ctx context.Context, refreshToken string) (*strava.AuthResp, error) {
	args := m.Called(refreshToken)
	resp, _ := args.Get(0).(*strava.AuthResp)
	return resp, args.Error(1)
}

func (m *StravaAPI) GetActivity(ctx context.Context, accessToken string, activityId int64) (*models.Activity, error) {
	args := m.Called(accessToken, activityId)
	activity, _ := args.Get(0).(*models.Activity)
	return activity, args.Error(1)
}
