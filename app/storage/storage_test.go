package storage

import (
	"database/sql"
	"testing"
	"time"

	"stridepoints/app/storage/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{DB: db}, mock
}

func userRowColumns() []string {
	return []string{"id", "strava_id", "firstname", "lastname", "profile_picture_url",
		"access_token", "refresh_token", "token_expires_at", "scope", "is_authorized"}
}

func TestGetUserByStravaId_Found(t *testing.T) {
	store, mock := newMockStore(t)

	expiry := int64(1724900000)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE strava_id = ?").
		WithArgs(int64(555)).
		WillReturnRows(sqlmock.NewRows(userRowColumns()).
			AddRow(1, 555, "Jo", "Doe", "http://img", "access", "refresh", expiry, "read", true))

	user, err := store.GetUserByStravaId(555)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "Jo", user.Firstname)
	require.NotNil(t, user.TokenExpiresAt)
	assert.Equal(t, expiry, *user.TokenExpiresAt)
	assert.True(t, user.IsAuthorized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByStravaId_AbsentIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE strava_id = ?").
		WithArgs(int64(777)).
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetUserByStravaId(777)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUpsertUser_SetsIDAndAuthorization(t *testing.T) {
	store, mock := newMockStore(t)

	expiry := int64(1724900000)
	user := &models.User{
		StravaId:       555,
		Firstname:      "Jo",
		Lastname:       "Doe",
		AccessToken:    "access",
		RefreshToken:   "refresh",
		TokenExpiresAt: &expiry,
		Scope:          "read,activity:read_all",
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(555), "Jo", "Doe", "", "access", "refresh", expiry, "read,activity:read_all").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id FROM users WHERE strava_id = ?").
		WithArgs(int64(555)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, store.UpsertUser(user))
	assert.Equal(t, int64(42), user.ID)
	assert.True(t, user.IsAuthorized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearUserTokens(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.ClearUserTokens(3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActivity_AbsentIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM activities WHERE user_id = \? AND strava_activity_id = \?`).
		WithArgs(int64(1), int64(123)).
		WillReturnError(sql.ErrNoRows)

	activity, err := store.GetActivity(1, 123)
	require.NoError(t, err)
	assert.Nil(t, activity)
}

func TestUpsertActivity(t *testing.T) {
	store, mock := newMockStore(t)

	activity := &models.Activity{
		UserID:           1,
		StravaActivityId: 123,
		StravaAthleteId:  555,
		Name:             "Morning Run",
		ActivityType:     "Run",
		Distance:         5231.5,
	}

	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.UpsertActivity(activity))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteActivity_AbsentRowIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM activities WHERE user_id = \? AND strava_activity_id = \?`).
		WithArgs(int64(1), int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteActivity(1, 999))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChallengeActivities(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 11, 22, 23, 59, 59, 0, time.UTC)

	cols := []string{"id", "user_id", "strava_activity_id", "strava_athlete_id", "name", "distance",
		"moving_time", "elapsed_time", "type", "sport_type", "start_date", "start_date_local",
		"timezone", "total_elevation_gain", "average_speed", "max_speed", "has_heartrate",
		"average_heartrate", "max_heartrate", "kudos_count", "comment_count", "photo_count",
		"map_polyline", "visibility", "gear_id"}

	first := start.Add(30 * time.Hour)
	second := start.Add(54 * time.Hour)
	rows := sqlmock.NewRows(cols).
		AddRow(1, 1, 123, 555, "Morning Run", 5231.5, 1800, 1900, "Run", "Run", first, first,
			"(GMT+01:00) Europe/Berlin", 42.5, 2.9, 4.1, true, 150.0, 172.0, 3, 1, 0, "", "everyone", "").
		AddRow(2, 1, 124, 555, "Evening Ride", 21000.0, 3600, 3700, "Ride", "Ride", second, second,
			"(GMT+01:00) Europe/Berlin", 120.0, 5.8, 11.2, false, 0.0, 0.0, 0, 0, 0, "", "everyone", "")

	mock.ExpectQuery("SELECT (.+) FROM activities").
		WithArgs(int64(1), "Walk", "Run", "Ride", start, end).
		WillReturnRows(rows)

	activities, err := store.GetChallengeActivities(1, []string{"Walk", "Run", "Ride"}, start, end)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "Morning Run", activities[0].Name)
	assert.Equal(t, "Evening Ride", activities[1].Name)
	assert.True(t, activities[0].StartDate.Before(activities[1].StartDate))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChallengeActivities_NoTypesShortCircuits(t *testing.T) {
	store, mock := newMockStore(t)

	activities, err := store.GetChallengeActivities(1, nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, activities)
	assert.NoError(t, mock.ExpectationsWereMet())
}
