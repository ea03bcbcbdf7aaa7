package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/application/command"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/query"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/auth"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleHealth)
	s.router.HandleFunc("GET /live", s.handleLive)

	// ─────────────────────────────────────────────────────────────────────────
	// Auth
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// ─────────────────────────────────────────────────────────────────────────
	// Offerings
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/offerings", s.handleSearchOfferings)
	s.router.HandleFunc("POST /api/v1/offerings", s.requireUser(s.handleCreateOffering))
	s.router.HandleFunc("GET /api/v1/offerings/{id}", s.handleGetOffering)
	s.router.HandleFunc("POST /api/v1/offerings/{id}/prayers", s.requireUser(s.handleTogglePrayer))
	s.router.HandleFunc("GET /api/v1/offerings/{id}/guidances", s.handleListGuidances)
	s.router.HandleFunc("POST /api/v1/offerings/{id}/guidances", s.requireUser(s.handleAddGuidance))

	// ─────────────────────────────────────────────────────────────────────────
	// Rankings & Search
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/rankings/{window}", s.handleGetRanking)
	s.router.HandleFunc("GET /api/v1/search", s.handleSearchOfferings)

	// ─────────────────────────────────────────────────────────────────────────
	// Users
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/users/me", s.requireUser(s.handleGetMe))
	s.router.HandleFunc("PUT /api/v1/users/me", s.requireUser(s.handleUpdateProfile))
	s.router.HandleFunc("GET /api/v1/users/{id}/offerings", s.handleGetUserOfferings)

	// ─────────────────────────────────────────────────────────────────────────
	// Notifications
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/notifications", s.requireUser(s.handleGetNotifications))
	s.router.HandleFunc("POST /api/v1/notifications/{id}/read", s.requireUser(s.handleMarkNotificationRead))
	s.router.HandleFunc("POST /api/v1/notifications/read-all", s.requireUser(s.handleMarkAllNotificationsRead))
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// authenticate verifies the Bearer token and returns its claims.
func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, auth.ErrInvalidToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return s.deps.Tokens.Verify(strings.TrimSpace(token))
}

// requireUser wraps a handler with mandatory authentication. The user ID
// lands in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token_expired", "Access token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "A valid access token is required")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

// currentUserID returns the authenticated user ID from context.
func currentUserID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyUserID).(string); ok {
		return id
	}
	return ""
}

// viewerID returns the user ID when the request carries a valid token,
// empty otherwise. Used on public endpoints that personalize responses.
func (s *Server) viewerID(r *http.Request) string {
	claims, err := s.authenticate(r)
	if err != nil {
		return ""
	}
	return claims.UserID
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"uptime": s.Uptime().String(),
	}

	if s.deps.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.RegisterUser.Handle(r.Context(), command.RegisterUserCommand{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	token, expiresAt, err := s.deps.Tokens.Issue(res.User.ID, res.User.Username.String())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserView(res.User),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.AuthenticateUser.Handle(r.Context(), command.AuthenticateUserCommand{
		Login:    req.Login,
		Password: req.Password,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	token, expiresAt, err := s.deps.Tokens.Issue(res.User.ID, res.User.Username.String())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserView(res.User),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFERING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createOfferingRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Genres  []string `json:"genres"`
}

func (s *Server) handleCreateOffering(w http.ResponseWriter, r *http.Request) {
	var req createOfferingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.CreateOffering.Handle(r.Context(), command.CreateOfferingCommand{
		AuthorID: currentUserID(r.Context()),
		Title:    req.Title,
		Content:  req.Content,
		Genres:   req.Genres,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         res.Offering.ID,
		"title":      res.Offering.Title,
		"created_at": res.Offering.CreatedAt,
	})
}

func (s *Server) handleGetOffering(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetOffering.Handle(r.Context(), query.GetOfferingQuery{
		OfferingID: r.PathValue("id"),
		ViewerID:   s.viewerID(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTogglePrayer(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.TogglePrayer.Handle(r.Context(), command.TogglePrayerCommand{
		OfferingID: r.PathValue("id"),
		UserID:     currentUserID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"offered": res.Offered,
		"prayers": res.Prayers,
	})
}

func (s *Server) handleListGuidances(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetOffering.Handle(r.Context(), query.GetOfferingQuery{
		OfferingID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"guidances":      res.Offering.Guidances,
		"guidance_count": res.Offering.GuidanceCount,
	})
}

type addGuidanceRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleAddGuidance(w http.ResponseWriter, r *http.Request) {
	var req addGuidanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.AddGuidance.Handle(r.Context(), command.AddGuidanceCommand{
		OfferingID: r.PathValue("id"),
		AuthorID:   currentUserID(r.Context()),
		Content:    req.Content,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"guidance": map[string]interface{}{
			"id":          res.Guidance.ID,
			"author_id":   res.Guidance.AuthorID,
			"author_name": res.Guidance.AuthorName,
			"content":     res.Guidance.Content,
			"created_at":  res.Guidance.CreatedAt,
		},
		"guidance_count": res.GuidanceCount,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING & SEARCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetRanking.Handle(r.Context(), query.GetRankingQuery{
		Window:            r.PathValue("window"),
		Limit:             queryParamInt(r, "limit", 0),
		Offset:            queryParamInt(r, "offset", 0),
		IncludeRankChange: queryParam(r, "changes", "true") == "true",
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearchOfferings(w http.ResponseWriter, r *http.Request) {
	q := query.SearchOfferingsQuery{
		Query:      queryParam(r, "q", ""),
		AuthorID:   queryParam(r, "author_id", ""),
		MinPrayers: queryParamInt(r, "min_prayers", 0),
		Limit:      queryParamInt(r, "limit", 0),
		Offset:     queryParamInt(r, "offset", 0),
	}
	if genres := queryParam(r, "genres", ""); genres != "" {
		q.Genres = strings.Split(genres, ",")
	}
	if from := queryParam(r, "from", ""); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "from must be RFC3339")
			return
		}
		q.From = t
	}
	if to := queryParam(r, "to", ""); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "to must be RFC3339")
			return
		}
		q.To = t
	}

	res, err := s.deps.SearchOfferings.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// userView is the public shape of a user profile.
type userView struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio"`
	FavoriteGenres []string  `json:"favorite_genres"`
	Status         string    `json:"status"`
	JoinedAt       time.Time `json:"joined_at"`

	Preferences preferencesView `json:"preferences"`
}

type preferencesView struct {
	PrayerNotices   bool `json:"prayer_notices"`
	GuidanceNotices bool `json:"guidance_notices"`
	RankingNotices  bool `json:"ranking_notices"`
	QuietHoursStart int  `json:"quiet_hours_start"`
	QuietHoursEnd   int  `json:"quiet_hours_end"`
}

func toUserView(u *user.User) userView {
	return userView{
		ID:             u.ID,
		Username:       u.Username.String(),
		Email:          u.Email.String(),
		DisplayName:    u.DisplayName,
		Bio:            u.Bio,
		FavoriteGenres: u.FavoriteGenres,
		Status:         string(u.Status),
		JoinedAt:       u.JoinedAt,
		Preferences: preferencesView{
			PrayerNotices:   u.Preferences.PrayerNotices,
			GuidanceNotices: u.Preferences.GuidanceNotices,
			RankingNotices:  u.Preferences.RankingNotices,
			QuietHoursStart: u.Preferences.QuietHoursStart,
			QuietHoursEnd:   u.Preferences.QuietHoursEnd,
		},
	}
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.UserRepo.GetByID(r.Context(), currentUserID(r.Context()))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

type updateProfileRequest struct {
	DisplayName    *string          `json:"display_name"`
	Bio            *string          `json:"bio"`
	FavoriteGenres []string         `json:"favorite_genres"`
	Preferences    *preferencesView `json:"preferences"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.UpdateProfileCommand{
		UserID:         currentUserID(r.Context()),
		DisplayName:    req.DisplayName,
		Bio:            req.Bio,
		FavoriteGenres: req.FavoriteGenres,
	}
	if req.Preferences != nil {
		cmd.Preferences = &user.NotificationPreferences{
			PrayerNotices:   req.Preferences.PrayerNotices,
			GuidanceNotices: req.Preferences.GuidanceNotices,
			RankingNotices:  req.Preferences.RankingNotices,
			QuietHoursStart: req.Preferences.QuietHoursStart,
			QuietHoursEnd:   req.Preferences.QuietHoursEnd,
		}
	}

	res, err := s.deps.UpdateProfile.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(res.User))
}

func (s *Server) handleGetUserOfferings(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetUserOfferings.Handle(r.Context(), query.GetUserOfferingsQuery{
		UserID:   r.PathValue("id"),
		Relation: query.Relation(queryParam(r, "relation", "")),
		ViewerID: s.viewerID(r),
		Limit:    queryParamInt(r, "limit", 0),
		Offset:   queryParamInt(r, "offset", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetNotifications.Handle(r.Context(), query.GetNotificationsQuery{
		UserID: currentUserID(r.Context()),
		Limit:  queryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.NotificationRepo.MarkRead(r.Context(), currentUserID(r.Context()), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.NotificationRepo.MarkAllRead(r.Context(), currentUserID(r.Context())); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody parses the JSON request body, enforcing the size limit.
// It writes the error response itself and reports success.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if s.config.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON for this endpoint")
		return false
	}
	return true
}

// writeDomainError maps application and domain errors to HTTP responses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case shared.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case shared.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case strings.Contains(err.Error(), "validation failed"),
		strings.Contains(err.Error(), "is required"):
		// Command/query Validate() errors are plain and not tagged with a
		// domain kind.
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		s.log.Error("request failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
