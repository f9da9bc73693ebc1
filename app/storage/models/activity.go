package models

import (
	"time"
)

// Activity mirrors one Strava activity locally. StravaActivityId is unique
// per owning user; the row is upserted on create/update events and removed on
// delete events.
type Activity struct {
	ID               int64     `json:"id,omitempty"`
	UserID           int64     `json:"user_id"`
	StravaActivityId int64     `json:"strava_activity_id"`
	StravaAthleteId  int64     `json:"strava_athlete_id"`
	Name             string    `json:"name"`
	Distance         float64   `json:"distance"`
	MovingTime       int64     `json:"moving_time"`
	ElapsedTime      int64     `json:"elapsed_time"`
	ActivityType     string    `json:"type"`
	SportType        string    `json:"sport_type"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	Timezone         string    `json:"timezone"`
	ElevationGain    float64   `json:"total_elevation_gain"`
	AverageSpeed     float64   `json:"average_speed"`
	MaxSpeed         float64   `json:"max_speed"`
	HasHeartrate     bool      `json:"has_heartrate"`
	AverageHeartrate float64   `json:"average_heartrate"`
	MaxHeartrate     float64   `json:"max_heartrate"`
	KudosCount       int64     `json:"kudos_count"`
	CommentCount     int64     `json:"comment_count"`
	PhotoCount       int64     `json:"total_photo_count"`
	MapPolyline      string    `json:"-"`
	Visibility       string    `json:"visibility"`
	GearId           string    `json:"gear_id"`
}

// LocalDate is the calendar day the activity happened on, in the athlete's
// timezone. Stage bucketing and day counting compare on this value only.
func (a Activity) LocalDate() string {
	return a.StartDateLocal.Format("2006-01-02")
}
