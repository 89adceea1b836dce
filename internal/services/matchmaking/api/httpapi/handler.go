// Package httpapi exposes the matchmaking service over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/squadforge/squadforge/internal/platform/errors"
	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
	"github.com/squadforge/squadforge/internal/services/matchmaking/notify"
)

// Handler serves the matchmaking HTTP API.
type Handler struct {
	service       *domain.Service
	notifications *notify.Service
	grantCfg      SessionGrantConfig
}

// NewHandler constructs the matchmaking API handler.
func NewHandler(service *domain.Service, notifications *notify.Service, grantCfg SessionGrantConfig) *Handler {
	return &Handler{
		service:       service,
		notifications: notifications,
		grantCfg:      grantCfg,
	}
}

// Routes builds the route table. Every /api route requires a session grant.
func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.authMiddleware)
	api.HandleFunc("/tickets", h.handleCreateTicket).Methods(http.MethodPost)
	api.HandleFunc("/tickets/{ticketId}", h.handleGetTicket).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{ticketId}", h.handleCancelTicket).Methods(http.MethodDelete)
	api.HandleFunc("/matches/{matchId}", h.handleGetMatch).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationId}/read", h.handleMarkNotificationRead).Methods(http.MethodPost)
	return router
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := ValidateSessionGrant(bearerToken(r), h.grantCfg)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := contextWithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type createTicketRequest struct {
	Game           string   `json:"game"`
	Region         string   `json:"region"`
	GameMode       string   `json:"gameMode"`
	SkillLevel     string   `json:"skillLevel"`
	Roles          []string `json:"roles"`
	Language       string   `json:"language"`
	MicRequired    bool     `json:"micRequired"`
	MaxWaitSeconds int      `json:"maxWaitSeconds"`
}

type gameStatsResponse struct {
	MatchesPlayed int     `json:"matchesPlayed"`
	Wins          int     `json:"wins"`
	KDRatio       float64 `json:"kdRatio"`
}

type snapshotResponse struct {
	Username    string                       `json:"username,omitempty"`
	DisplayName string                       `json:"displayName,omitempty"`
	AvatarURL   string                       `json:"avatarUrl,omitempty"`
	GameStats   map[string]gameStatsResponse `json:"gameStats,omitempty"`
}

type ticketResponse struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Status         string            `json:"status"`
	Game           string            `json:"game"`
	Region         string            `json:"region"`
	GameMode       string            `json:"gameMode"`
	SkillLevel     string            `json:"skillLevel"`
	Roles          []string          `json:"roles,omitempty"`
	RolesAny       bool              `json:"rolesAny,omitempty"`
	Language       string            `json:"language"`
	MicRequired    bool              `json:"micRequired"`
	MaxWaitSeconds int               `json:"maxWaitSeconds"`
	MatchID        string            `json:"matchId,omitempty"`
	Snapshot       *snapshotResponse `json:"snapshot,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	ClosedAt       *time.Time        `json:"closedAt,omitempty"`
}

type matchParticipantResponse struct {
	UserID      string `json:"userId"`
	TicketID    string `json:"ticketId"`
	SkillLevel  string `json:"skillLevel"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type matchResponse struct {
	ID           string                     `json:"id"`
	Status       string                     `json:"status"`
	Game         string                     `json:"game"`
	Region       string                     `json:"region"`
	GameMode     string                     `json:"gameMode"`
	Language     string                     `json:"language"`
	Result       string                     `json:"result,omitempty"`
	Participants []matchParticipantResponse `json:"participants"`
	CreatedAt    time.Time                  `json:"createdAt"`
}

type notificationResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	ReadAt    *time.Time      `json:"readAt,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
	UnreadCount   int                    `json:"unreadCount"`
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, apperrors.New(apperrors.CodeInvalidCriteria, "invalid JSON payload"))
		return
	}

	ticket, err := h.service.CreateTicket(r.Context(), domain.CreateTicketInput{
		UserID:         userIDFromContext(r.Context()),
		Game:           req.Game,
		Region:         req.Region,
		GameMode:       req.GameMode,
		SkillLevel:     req.SkillLevel,
		Roles:          req.Roles,
		Language:       req.Language,
		MicRequired:    req.MicRequired,
		MaxWaitSeconds: req.MaxWaitSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketResponse(ticket))
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticketId"]
	ticket, err := h.service.GetTicket(r.Context(), ticketID, userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

func (h *Handler) handleCancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticketId"]
	if err := h.service.CancelTicket(r.Context(), ticketID, userIDFromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	match, err := h.service.GetMatch(r.Context(), matchID, userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(match))
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	pageSize := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, r, apperrors.New(apperrors.CodeInvalidCriteria, "pageSize must be a positive integer"))
			return
		}
		pageSize = parsed
	}
	pageToken := r.URL.Query().Get("pageToken")

	page, err := h.notifications.ListInbox(r.Context(), userID, pageSize, pageToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := notificationListResponse{
		Notifications: make([]notificationResponse, 0, len(page.Notifications)),
		NextPageToken: page.NextPageToken,
		UnreadCount:   unread,
	}
	for _, notification := range page.Notifications {
		response.Notifications = append(response.Notifications, toNotificationResponse(notification))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID := mux.Vars(r)["notificationId"]
	notification, err := h.notifications.MarkRead(r.Context(), userIDFromContext(r.Context()), notificationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(notification))
}

func toSnapshotResponse(snapshot domain.ProfileSnapshot) *snapshotResponse {
	if snapshot.Username == "" && snapshot.DisplayName == "" && snapshot.AvatarURL == "" && len(snapshot.GameStats) == 0 {
		return nil
	}
	response := &snapshotResponse{
		Username:    snapshot.Username,
		DisplayName: snapshot.DisplayName,
		AvatarURL:   snapshot.AvatarURL,
	}
	if len(snapshot.GameStats) > 0 {
		response.GameStats = make(map[string]gameStatsResponse, len(snapshot.GameStats))
		for game, stats := range snapshot.GameStats {
			response.GameStats[game] = gameStatsResponse{
				MatchesPlayed: stats.MatchesPlayed,
				Wins:          stats.Wins,
				KDRatio:       stats.KDRatio,
			}
		}
	}
	return response
}

func toTicketResponse(ticket domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:             ticket.ID,
		UserID:         ticket.UserID,
		Status:         string(ticket.Status),
		Game:           ticket.Game,
		Region:         ticket.Region,
		GameMode:       ticket.GameMode,
		SkillLevel:     ticket.Skill.String(),
		Roles:          ticket.Roles.Roles,
		RolesAny:       ticket.Roles.Any,
		Language:       ticket.Language.String(),
		MicRequired:    ticket.MicRequired,
		MaxWaitSeconds: int(ticket.MaxWait / time.Second),
		MatchID:        ticket.MatchID,
		Snapshot:       toSnapshotResponse(ticket.Snapshot),
		CreatedAt:      ticket.CreatedAt,
		ExpiresAt:      ticket.ExpiresAt,
		ClosedAt:       ticket.ClosedAt,
	}
}

func toMatchResponse(match domain.Match) matchResponse {
	participants := []matchParticipantResponse{
		{
			UserID:      match.User1ID,
			TicketID:    match.Ticket1ID,
			SkillLevel:  match.Skill1.String(),
			Username:    match.User1Snapshot.Username,
			DisplayName: match.User1Snapshot.DisplayName,
			AvatarURL:   match.User1Snapshot.AvatarURL,
		},
		{
			UserID:      match.User2ID,
			TicketID:    match.Ticket2ID,
			SkillLevel:  match.Skill2.String(),
			Username:    match.User2Snapshot.Username,
			DisplayName: match.User2Snapshot.DisplayName,
			AvatarURL:   match.User2Snapshot.AvatarURL,
		},
	}
	return matchResponse{
		ID:           match.ID,
		Status:       string(match.Status),
		Game:         match.Game,
		Region:       match.Region,
		GameMode:     match.GameMode,
		Language:     match.Language.String(),
		Result:       match.Result,
		Participants: participants,
		CreatedAt:    match.CreatedAt,
	}
}

func toNotificationResponse(notification notify.Notification) notificationResponse {
	return notificationResponse{
		ID:        notification.ID,
		Type:      notification.MessageType,
		Payload:   notification.Payload,
		CreatedAt: notification.CreatedAt,
		ReadAt:    notification.ReadAt,
	}
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCode classifies an error into the public API code space.
func errorCode(err error) apperrors.Code {
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		return code
	}
	switch {
	case domain.IsInvalidCriteria(err), errors.Is(err, domain.ErrCallerRequired):
		return apperrors.CodeInvalidCriteria
	case errors.Is(err, domain.ErrActiveTicketExists):
		return apperrors.CodeAlreadyActiveTicket
	case errors.Is(err, domain.ErrTicketNotFound):
		return apperrors.CodeTicketNotFound
	case errors.Is(err, domain.ErrTicketNotOwner):
		return apperrors.CodeTicketNotOwner
	case errors.Is(err, domain.ErrTicketNotActive):
		return apperrors.CodeTicketNotActive
	case errors.Is(err, domain.ErrMatchNotFound):
		return apperrors.CodeMatchNotFound
	case errors.Is(err, domain.ErrMatchNotParticipant):
		return apperrors.CodeMatchNotParticipant
	case errors.Is(err, notify.ErrNotFound):
		return apperrors.CodeNotificationNotFound
	case errors.Is(err, domain.ErrProfileUnavailable):
		return apperrors.CodeProfileLookupFailed
	case errors.Is(err, domain.ErrStoreNotConfigured):
		return apperrors.CodeStorageFailure
	default:
		return apperrors.CodeUnknown
	}
}

// errorMessage returns a safe public message for an error.
func errorMessage(err error, code apperrors.Code) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch code {
	case apperrors.CodeUnknown, apperrors.CodeStorageFailure:
		return "internal server error"
	case apperrors.CodeProfileLookupFailed:
		return "profile lookup failed"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	writeJSON(w, code.HTTPStatus(), errorResponse{
		RequestID: requestIDFromContext(r.Context()),
		Error: responseError{
			Code:    string(code),
			Message: errorMessage(err, code),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
