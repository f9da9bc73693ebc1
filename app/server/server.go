package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"stridepoints/app/challenge"
	"stridepoints/app/notify"
	"stridepoints/app/storage"
	"stridepoints/app/storage/models"
	"stridepoints/app/strava"
	"stridepoints/app/utils"

	"golang.org/x/oauth2"
)

type HttpHandler struct {
	Url            string
	Port           string
	VerifyToken    string
	AdminTokenHash string
	DB             storage.Store
	Strava         strava.API
	Tokens         *TokenManager
	Reconciler     *Reconciler
	Board          *challenge.Assembler
	JWT            utils.JWT
	OAuth          *oauth2.Config
	Created        chan notify.Event
}

func (h *HttpHandler) Init() {
	h.VerifyToken = os.Getenv("STRAVA_VERIFY_TOKEN")
	h.AdminTokenHash = os.Getenv("ADMIN_TOKEN_HASH")
	h.Port = os.Getenv("PORT")
	h.Url = os.Getenv("URL")
	h.JWT = utils.JWT{Key: []byte(os.Getenv("JWT_KEY"))}
	h.Strava = strava.NewClient()
	h.DB = &storage.SQLiteStore{}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "db/stridepoints.db"
	}
	if err := h.DB.Connect(dbPath); err != nil {
		slog.Error("error while connecting to DB")
		panic(err)
	}

	startDate := os.Getenv("CHALLENGE_START_DATE")
	if startDate == "" {
		startDate = "2024-08-15"
	}
	tl, err := challenge.NewTimeline(startDate)
	if err != nil {
		slog.Error("error while building challenge timeline", "err", err)
		panic(err)
	}
	engine, err := challenge.NewEngine(tl)
	if err != nil {
		slog.Error("error while constructing scoring engine", "err", err)
		panic(err)
	}
	h.Board = &challenge.Assembler{Engine: engine, Source: h.DB}

	h.Tokens = &TokenManager{DB: h.DB, Strava: h.Strava}
	h.Reconciler = &Reconciler{DB: h.DB, Strava: h.Strava, Tokens: h.Tokens, Created: h.Created}

	h.OAuth = &oauth2.Config{
		ClientID:    os.Getenv("STRAVA_CLIENT_ID"),
		RedirectURL: h.Url + "/auth-callback",
		Scopes:      []string{"read", "activity:read_all"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.strava.com/oauth/authorize",
			TokenURL: "https://www.strava.com/oauth/token",
		},
	}
}

func (h *HttpHandler) webhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.webhookVerify(w, r)
	case http.MethodPost:
		h.webhookEvent(w, r)
	default:
		slog.Warn("webhook called with unsupported method", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// webhookVerify handles the subscription handshake: echo the challenge back
// when the mode is "subscribe" and the verify token matches, 403 otherwise.
func (h *HttpHandler) webhookVerify(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()
	mode := vals.Get("hub.mode")
	token := vals.Get("hub.verify_token")
	hubChallenge := vals.Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.VerifyToken {
		slog.Info("webhook verified")
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"hub.challenge": hubChallenge}); err != nil {
			slog.Error("error while writing challenge response", "err", err)
		}
		return
	}
	slog.Error("webhook verification failed", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// webhookEvent acknowledges every structurally readable request with 200
// before any reconciliation work: the sender has no way to consume a later
// error and would only retry. Reconciliation runs detached; its outcome is
// observable through logs and local state only.
func (h *HttpHandler) webhookEvent(w http.ResponseWriter, r *http.Request) {
	var ev WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		slog.Error("error while reading event body, dropping", "err", err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED_BUT_INVALID_PAYLOAD"))
		return
	}
	if !ev.Valid() {
		slog.Error("event missing required fields, dropping",
			"object_type", ev.ObjectType, "aspect_type", ev.AspectType,
			"object_id", ev.ObjectId, "owner_id", ev.OwnerId)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("EVENT_RECEIVED_BUT_INVALID_PAYLOAD"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))

	go h.Reconciler.Process(context.Background(), ev)
}

// authRedirect starts the OAuth flow by sending the browser to Strava's
// authorize page with a random state value pinned in a cookie.
func (h *HttpHandler) authRedirect(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("error while generating oauth state", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   600,
	})
	authUrl := h.OAuth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
	http.Redirect(w, r, authUrl, http.StatusTemporaryRedirect)
}

// authCallback exchanges the authorization code, upserts the local user and
// issues a session cookie.
func (h *HttpHandler) authCallback(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()
	if errParam := vals.Get("error"); errParam != "" {
		slog.Error("authorization denied", "error", errParam)
		http.Error(w, "Strava authorization failed", http.StatusForbidden)
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != vals.Get("state") {
		slog.Error("oauth state mismatch")
		http.Error(w, "Invalid state parameter", http.StatusForbidden)
		return
	}

	code := vals.Get("code")
	if code == "" {
		slog.Error("callback missing authorization code")
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}

	authData, err := h.Strava.Authorize(r.Context(), code)
	if err != nil {
		slog.Error("error while exchanging authorization code", "err", err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	usr := h.userFromAuth(authData, vals.Get("scope"))
	if err := h.DB.UpsertUser(usr); err != nil {
		slog.Error("error while upserting user", "err", err)
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	session, err := h.JWT.GenerateJWTForUser(usr.ID)
	if err != nil {
		slog.Error("error while issuing session token", "err", err)
		http.Error(w, "Session setup failed", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    session.Value,
		Path:     "/",
		HttpOnly: true,
		Expires:  session.ExpiresAt,
	})
	slog.Info("user authorized", "user_id", usr.ID, "strava_id", usr.StravaId)
	http.Redirect(w, r, "/leaderboard", http.StatusSeeOther)
}

func (h *HttpHandler) userFromAuth(authData *strava.AuthResp, scope string) *models.User {
	return &models.User{
		StravaId:          authData.Athlete.Id,
		Firstname:         authData.Athlete.Firstname,
		Lastname:          authData.Athlete.Lastname,
		ProfilePictureUrl: authData.Athlete.ProfileMedium,
		AccessToken:       authData.AccessToken,
		RefreshToken:      authData.RefreshToken,
		TokenExpiresAt:    &authData.ExpiresAt,
		Scope:             scope,
		IsAuthorized:      true,
	}
}

func (h *HttpHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.DB.GetAllUsers()
	if err != nil {
		slog.Error("error while fetching users for leaderboard", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	entries := h.Board.Rank(users)
	if entries == nil {
		entries = []challenge.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("error while writing leaderboard", "err", err)
	}
}

// myScore returns the full per-stage breakdown for the session holder.
func (h *HttpHandler) myScore(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session")
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userId, err := h.JWT.GetUserIdFromToken(cookie.Value)
	if err != nil {
		slog.Error("error while validating session token", "err", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	score, err := h.Board.ScoreUser(*userId)
	if err != nil {
		slog.Error("error while scoring user", "user_id", *userId, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(score); err != nil {
		slog.Error("error while writing score", "err", err)
	}
}

// adminTokenSweep triggers a token refresh sweep on demand, guarded by the
// bcrypt-hashed admin token.
func (h *HttpHandler) adminTokenSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := r.Header.Get("X-Admin-Token")
	if h.AdminTokenHash == "" || !utils.CheckSecret(h.AdminTokenHash, token) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	refreshed, failed, err := h.Tokens.SweepAll(r.Context())
	if err != nil {
		slog.Error("error while sweeping tokens", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"refreshed": refreshed, "failed": failed})
}

func (h *HttpHandler) Start() {
	http.HandleFunc("/webhook", h.webhook)
	http.HandleFunc("/auth", h.authRedirect)
	http.HandleFunc("/auth-callback", h.authCallback)
	http.HandleFunc("/leaderboard", h.leaderboard)
	http.HandleFunc("/me/score", h.myScore)
	http.HandleFunc("/admin/token-sweep", h.adminTokenSweep)

	slog.Info("Starting server on port " + h.Port)
	err := http.ListenAndServe(":"+h.Port, nil)
	if err != nil {
		slog.Error("wasn't able to start the server")
		panic(err)
	}
}
