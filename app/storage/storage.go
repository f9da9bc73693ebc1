package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"stridepoints/app/storage/models"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Store interface {
	Connect(path string) error
	GetAllUsers() ([]*models.User, error)
	GetUserById(id int64) (*models.User, error)
	GetUserByStravaId(stravaId int64) (*models.User, error)
	UpsertUser(user *models.User) error
	UpdateUserTokens(user *models.User) error
	ClearUserTokens(userId int64) error
	GetActivity(userId, stravaActivityId int64) (*models.Activity, error)
	UpsertActivity(activity *models.Activity) error
	DeleteActivity(userId, stravaActivityId int64) error
	GetChallengeActivities(userId int64, types []string, start, end time.Time) ([]models.Activity, error)
}

var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	DB *sql.DB
}

func (s *SQLiteStore) Connect(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		slog.Error("cannot open sqlite file", "path", path)
		return err
	}
	s.DB = db
	if err = s.createTables(); err != nil {
		slog.Error("cannot create tables", "err", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) createTables() error {
	userTable := `
    CREATE TABLE IF NOT EXISTS users (
      id INTEGER PRIMARY KEY AUTOINCREMENT,
      strava_id INTEGER UNIQUE NOT NULL,
      firstname TEXT,
      lastname TEXT,
      profile_picture_url TEXT,
      access_token TEXT,
      refresh_token TEXT,
      token_expires_at INTEGER,
      scope TEXT,
      is_authorized INTEGER DEFAULT 0
    );
  `
	activityTable := `
    CREATE TABLE IF NOT EXISTS activities (
      id INTEGER PRIMARY KEY AUTOINCREMENT,
      user_id INTEGER NOT NULL,
      strava_activity_id INTEGER NOT NULL,
      strava_athlete_id INTEGER,
      name VARCHAR,
      distance REAL,
      moving_time INTEGER,
      elapsed_time INTEGER,
      type TEXT,
      sport_type TEXT,
      start_date DATETIME,
      start_date_local DATETIME,
      timezone TEXT,
      total_elevation_gain REAL,
      average_speed REAL,
      max_speed REAL,
      has_heartrate INTEGER DEFAULT 0,
      average_heartrate REAL,
      max_heartrate REAL,
      kudos_count INTEGER DEFAULT 0,
      comment_count INTEGER DEFAULT 0,
      photo_count INTEGER DEFAULT 0,
      map_polyline TEXT,
      visibility TEXT,
      gear_id TEXT,
      UNIQUE(user_id, strava_activity_id),
      FOREIGN KEY(user_id) REFERENCES users(id)
    );
  `

	_, err := s.DB.Exec(userTable)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(activityTable)
	if err != nil {
		return err
	}

	return nil
}

const userColumns = `id, strava_id, firstname, lastname, profile_picture_url, access_token, refresh_token, token_expires_at, scope, is_authorized`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.StravaId, &user.Firstname, &user.Lastname, &user.ProfilePictureUrl,
		&user.AccessToken, &user.RefreshToken, &user.TokenExpiresAt, &user.Scope, &user.IsAuthorized)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) GetAllUsers() ([]*models.User, error) {
	rows, err := s.DB.Query(`SELECT ` + userColumns + ` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) GetUserById(id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.DB.QueryRow(query, id))
	if err != nil {
		slog.Error("error while fetching user by id", "id", id)
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByStravaId(stravaId int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_id = ?`
	user, err := scanUser(s.DB.QueryRow(query, stravaId))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("error while fetching user by strava id", "id", stravaId)
		return nil, err
	}
	return user, nil
}

// UpsertUser creates or updates a user keyed by strava_id and marks them
// authorized. Called on every successful token exchange.
func (s *SQLiteStore) UpsertUser(user *models.User) error {
	query := `
    INSERT INTO users (
        strava_id, firstname, lastname, profile_picture_url, access_token, refresh_token, token_expires_at, scope, is_authorized
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
    ON CONFLICT(strava_id) DO UPDATE SET
        firstname = excluded.firstname,
        lastname = excluded.lastname,
        profile_picture_url = excluded.profile_picture_url,
        access_token = excluded.access_token,
        refresh_token = excluded.refresh_token,
        token_expires_at = excluded.token_expires_at,
        scope = excluded.scope,
        is_authorized = 1
  `
	_, err := s.DB.Exec(query, user.StravaId, user.Firstname, user.Lastname, user.ProfilePictureUrl,
		user.AccessToken, user.RefreshToken, user.TokenExpiresAt, user.Scope)
	if err != nil {
		slog.Error("error while upserting user", "err", err, "strava_id", user.StravaId)
		return err
	}
	user.IsAuthorized = true
	return s.DB.QueryRow(`SELECT id FROM users WHERE strava_id = ?`, user.StravaId).Scan(&user.ID)
}

func (s *SQLiteStore) UpdateUserTokens(user *models.User) error {
	slog.Debug("updating user tokens", "user_id", user.ID)
	query := `
    UPDATE users
    SET access_token = ?, refresh_token = ?, token_expires_at = ?, is_authorized = ?
    WHERE id = ?
  `
	_, err := s.DB.Exec(query, user.AccessToken, user.RefreshToken, user.TokenExpiresAt, user.IsAuthorized, user.ID)
	return err
}

// ClearUserTokens wipes all token state and the authorization flag. Safe to
// call for an already-deauthorized user.
func (s *SQLiteStore) ClearUserTokens(userId int64) error {
	query := `
    UPDATE users
    SET access_token = '', refresh_token = '', token_expires_at = NULL, scope = '', is_authorized = 0
    WHERE id = ?
  `
	_, err := s.DB.Exec(query, userId)
	if err != nil {
		slog.Error("error while clearing user tokens", "user_id", userId)
	}
	return err
}

const activityColumns = `id, user_id, strava_activity_id, strava_athlete_id, name, distance, moving_time, elapsed_time, type, sport_type, start_date, start_date_local, timezone, total_elevation_gain, average_speed, max_speed, has_heartrate, average_heartrate, max_heartrate, kudos_count, comment_count, photo_count, map_polyline, visibility, gear_id`

func scanActivity(row interface{ Scan(...any) error }) (*models.Activity, error) {
	a := &models.Activity{}
	err := row.Scan(&a.ID, &a.UserID, &a.StravaActivityId, &a.StravaAthleteId, &a.Name, &a.Distance,
		&a.MovingTime, &a.ElapsedTime, &a.ActivityType, &a.SportType, &a.StartDate, &a.StartDateLocal,
		&a.Timezone, &a.ElevationGain, &a.AverageSpeed, &a.MaxSpeed, &a.HasHeartrate, &a.AverageHeartrate,
		&a.MaxHeartrate, &a.KudosCount, &a.CommentCount, &a.PhotoCount, &a.MapPolyline, &a.Visibility, &a.GearId)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetActivity returns the mirrored activity for (user, strava activity id),
// or nil without error when no such row exists.
func (s *SQLiteStore) GetActivity(userId, stravaActivityId int64) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = ? AND strava_activity_id = ?`
	a, err := scanActivity(s.DB.QueryRow(query, userId, stravaActivityId))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("error while fetching activity", "user_id", userId, "strava_activity_id", stravaActivityId)
		return nil, err
	}
	return a, nil
}

func (s *SQLiteStore) UpsertActivity(activity *models.Activity) error {
	query := `
    INSERT INTO activities (
        user_id, strava_activity_id, strava_athlete_id, name, distance, moving_time, elapsed_time, type, sport_type,
        start_date, start_date_local, timezone, total_elevation_gain, average_speed, max_speed,
        has_heartrate, average_heartrate, max_heartrate, kudos_count, comment_count, photo_count,
        map_polyline, visibility, gear_id
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(user_id, strava_activity_id) DO UPDATE SET
        strava_athlete_id = excluded.strava_athlete_id,
        name = excluded.name,
        distance = excluded.distance,
        moving_time = excluded.moving_time,
        elapsed_time = excluded.elapsed_time,
        type = excluded.type,
        sport_type = excluded.sport_type,
        start_date = excluded.start_date,
        start_date_local = excluded.start_date_local,
        timezone = excluded.timezone,
        total_elevation_gain = excluded.total_elevation_gain,
        average_speed = excluded.average_speed,
        max_speed = excluded.max_speed,
        has_heartrate = excluded.has_heartrate,
        average_heartrate = excluded.average_heartrate,
        max_heartrate = excluded.max_heartrate,
        kudos_count = excluded.kudos_count,
        comment_count = excluded.comment_count,
        photo_count = excluded.photo_count,
        map_polyline = excluded.map_polyline,
        visibility = excluded.visibility,
        gear_id = excluded.gear_id
  `
	_, err := s.DB.Exec(query, activity.UserID, activity.StravaActivityId, activity.StravaAthleteId,
		activity.Name, activity.Distance, activity.MovingTime, activity.ElapsedTime, activity.ActivityType,
		activity.SportType, activity.StartDate, activity.StartDateLocal, activity.Timezone,
		activity.ElevationGain, activity.AverageSpeed, activity.MaxSpeed, activity.HasHeartrate,
		activity.AverageHeartrate, activity.MaxHeartrate, activity.KudosCount, activity.CommentCount,
		activity.PhotoCount, activity.MapPolyline, activity.Visibility, activity.GearId)
	if err != nil {
		slog.Error("error while upserting activity", "err", err, "strava_activity_id", activity.StravaActivityId)
	}
	return err
}

// DeleteActivity removes the mirror row if present. Deleting an absent
// activity is not an error.
func (s *SQLiteStore) DeleteActivity(userId, stravaActivityId int64) error {
	query := `DELETE FROM activities WHERE user_id = ? AND strava_activity_id = ?`
	res, err := s.DB.Exec(query, userId, stravaActivityId)
	if err != nil {
		slog.Error("error while deleting activity", "user_id", userId, "strava_activity_id", stravaActivityId)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.Debug("delete for activity not present locally", "strava_activity_id", stravaActivityId)
	}
	return nil
}

// GetChallengeActivities returns the user's activities of the given types
// whose start date falls inside [start, end], ordered by start date
// ascending.
func (s *SQLiteStore) GetChallengeActivities(userId int64, types []string, start, end time.Time) ([]models.Activity, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(types)-1) + "?"
	query := fmt.Sprintf(`SELECT `+activityColumns+` FROM activities
    WHERE user_id = ? AND type IN (%s) AND start_date >= ? AND start_date <= ?
    ORDER BY start_date ASC`, placeholders)

	args := make([]any, 0, len(types)+3)
	args = append(args, userId)
	for _, t := range types {
		args = append(args, t)
	}
	args = append(args, start, end)

	rows, err := s.DB.Query(query, args...)
	if err != nil {
		slog.Error("error while fetching challenge activities", "user_id", userId)
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var activities []models.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
