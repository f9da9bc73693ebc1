package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"stridepoints/app/notify"
	"stridepoints/app/storage"
	"stridepoints/app/storage/models"
	"stridepoints/app/strava"
	"sync"
)

// WebhookEvent is the Strava push notification payload.
type WebhookEvent struct {
	ObjectType string         `json:"object_type"`
	AspectType string         `json:"aspect_type"`
	ObjectId   int64          `json:"object_id"`
	OwnerId    int64          `json:"owner_id"`
	Updates    map[string]any `json:"updates"`
}

// Valid reports whether all four required fields are present.
func (ev WebhookEvent) Valid() bool {
	return ev.ObjectType != "" && ev.AspectType != "" && ev.ObjectId != 0 && ev.OwnerId != 0
}

// Reconciler applies webhook events to the local activity mirror. Events for
// the same (user, activity) are serialized through a keyed mutex; events may
// still arrive duplicated or out of order, so every operation re-fetches
// authoritative state and is idempotent on (user, strava activity id).
type Reconciler struct {
	DB      storage.Store
	Strava  strava.API
	Tokens  *TokenManager
	Created chan<- notify.Event

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Process runs one event to completion. It is called from a detached
// goroutine after the webhook acknowledgement: failures here are terminal for
// this event only and observable via logs, never via the original response.
func (rc *Reconciler) Process(ctx context.Context, ev WebhookEvent) {
	usr, err := rc.DB.GetUserByStravaId(ev.OwnerId)
	if err != nil {
		slog.Error("error while resolving event owner", "owner_id", ev.OwnerId, "err", err)
		return
	}
	if usr == nil {
		slog.Warn("event for unknown owner dropped", "owner_id", ev.OwnerId)
		return
	}

	switch {
	case ev.ObjectType == "activity":
		unlock := rc.lock(usr.ID, ev.ObjectId)
		defer unlock()

		switch ev.AspectType {
		case "create":
			err = rc.reconcileCreate(ctx, usr, ev.ObjectId)
		case "update":
			err = rc.reconcileUpdate(ctx, usr, ev.ObjectId)
		case "delete":
			err = rc.reconcileDelete(usr, ev.ObjectId)
		default:
			slog.Warn("unhandled aspect type for activity event", "aspect_type", ev.AspectType)
		}
	case ev.ObjectType == "athlete" && ev.AspectType == "update" && revoked(ev.Updates):
		slog.Warn("athlete deauthorized the application", "strava_id", usr.StravaId)
		err = rc.Tokens.Deauthorize(usr)
	default:
		slog.Info("unhandled webhook event", "object_type", ev.ObjectType, "aspect_type", ev.AspectType)
	}

	if err != nil {
		slog.Error("error while reconciling event",
			"object_type", ev.ObjectType, "aspect_type", ev.AspectType,
			"object_id", ev.ObjectId, "owner_id", ev.OwnerId, "err", err)
	}
}

// revoked detects the authorized=false marker in an athlete update. Strava
// sends it either as a JSON bool or as the string "false".
func revoked(updates map[string]any) bool {
	v, ok := updates["authorized"]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return !b
	case string:
		return b == "false"
	}
	return false
}

// reconcileCreate inserts a newly announced activity. A replayed create for
// an already-mirrored activity is routed through the update path instead of
// inserting a duplicate. Token or fetch failures abort without touching local
// state, so an equivalent later event can retry cleanly.
func (rc *Reconciler) reconcileCreate(ctx context.Context, usr *models.User, stravaActivityId int64) error {
	existing, err := rc.DB.GetActivity(usr.ID, stravaActivityId)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("activity already mirrored, treating create as update", "strava_activity_id", stravaActivityId)
		return rc.reconcileUpdate(ctx, usr, stravaActivityId)
	}

	activity, err := rc.fetch(ctx, usr, stravaActivityId)
	if err != nil {
		return err
	}
	if err := rc.DB.UpsertActivity(activity); err != nil {
		return err
	}
	slog.Info("activity mirrored", "strava_activity_id", stravaActivityId, "user_id", usr.ID)
	rc.announce(usr, activity)
	return nil
}

// reconcileUpdate re-fetches the authoritative record rather than trusting
// the event's partial updates payload. A missing local record is treated as a
// missed create. A remote 404 leaves the local record untouched: the activity
// may only be temporarily inaccessible, and deletes arrive as their own
// events.
func (rc *Reconciler) reconcileUpdate(ctx context.Context, usr *models.User, stravaActivityId int64) error {
	existing, err := rc.DB.GetActivity(usr.ID, stravaActivityId)
	if err != nil {
		return err
	}
	if existing == nil {
		slog.Warn("update for unmirrored activity, treating as create", "strava_activity_id", stravaActivityId)
		return rc.reconcileCreate(ctx, usr, stravaActivityId)
	}

	activity, err := rc.fetch(ctx, usr, stravaActivityId)
	if errors.Is(err, strava.ErrNotFound) {
		slog.Warn("updated activity not fetchable, leaving local record untouched", "strava_activity_id", stravaActivityId)
		return nil
	}
	if err != nil {
		return err
	}
	activity.ID = existing.ID
	return rc.DB.UpsertActivity(activity)
}

func (rc *Reconciler) reconcileDelete(usr *models.User, stravaActivityId int64) error {
	return rc.DB.DeleteActivity(usr.ID, stravaActivityId)
}

func (rc *Reconciler) fetch(ctx context.Context, usr *models.User, stravaActivityId int64) (*models.Activity, error) {
	token, err := rc.Tokens.EnsureValidToken(ctx, usr)
	if err != nil {
		return nil, fmt.Errorf("cannot get valid token: %w", err)
	}
	activity, err := rc.Strava.GetActivity(ctx, token, stravaActivityId)
	if err != nil {
		return nil, err
	}
	activity.UserID = usr.ID
	activity.StravaAthleteId = usr.StravaId
	activity.StravaActivityId = stravaActivityId
	return activity, nil
}

func (rc *Reconciler) announce(usr *models.User, activity *models.Activity) {
	if rc.Created == nil {
		return
	}
	select {
	case rc.Created <- notify.Event{User: *usr, Activity: *activity}:
	default:
		slog.Debug("announcement channel full, dropping", "strava_activity_id", activity.StravaActivityId)
	}
}

// lock serializes reconciliation per (user, activity) so that a create and
// an update racing for the same record cannot interleave.
func (rc *Reconciler) lock(userId, stravaActivityId int64) func() {
	key := fmt.Sprintf("%d:%d", userId, stravaActivityId)
	rc.mu.Lock()
	if rc.locks == nil {
		rc.locks = make(map[string]*sync.Mutex)
	}
	m, ok := rc.locks[key]
	if !ok {
		m = &sync.Mutex{}
		rc.locks[key] = m
	}
	rc.mu.Unlock()
	m.Lock()
	return m.Unlock
}
