package challenge

import (
	"log/slog"
	"sort"
	"stridepoints/app/storage/models"
	"time"
)

// ActivitySource is the read-only slice of the store the leaderboard needs.
type ActivitySource interface {
	GetChallengeActivities(userId int64, types []string, start, end time.Time) ([]models.Activity, error)
}

type Entry struct {
	UserID            int64   `json:"user_id"`
	StravaId          int64   `json:"strava_id"`
	Name              string  `json:"name"`
	ProfilePictureUrl string  `json:"profile_picture_url,omitempty"`
	TotalPoints       float64 `json:"total_points"`
}

// Assembler recomputes every user's score on each call. Reads are
// best-effort: a concurrently reconciling activity may or may not be counted.
type Assembler struct {
	Engine      *Engine
	Source      ActivitySource
	IncludeZero bool
}

// ScoreUser fetches the user's challenge activities and scores them.
func (a *Assembler) ScoreUser(userId int64) (Score, error) {
	tl := a.Engine.Timeline()
	start, end := tl.Window()
	activities, err := a.Source.GetChallengeActivities(userId, tl.ActivityTypes, start, end)
	if err != nil {
		return Score{}, err
	}
	return a.Engine.Score(activities), nil
}

// Rank scores every user and sorts descending by total points. The sort is
// stable, so equal totals keep their enumeration order. Users whose score
// cannot be computed are skipped rather than failing the whole board.
func (a *Assembler) Rank(users []*models.User) []Entry {
	var entries []Entry
	for _, u := range users {
		score, err := a.ScoreUser(u.ID)
		if err != nil {
			slog.Error("error while scoring user for leaderboard", "user_id", u.ID, "err", err)
			continue
		}
		if score.TotalPoints == 0 && !a.IncludeZero {
			continue
		}
		entries = append(entries, Entry{
			UserID:            u.ID,
			StravaId:          u.StravaId,
			Name:              u.DisplayName(),
			ProfilePictureUrl: u.ProfilePictureUrl,
			TotalPoints:       score.TotalPoints,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	return entries
}
