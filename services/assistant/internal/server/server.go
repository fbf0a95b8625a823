package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"skucatalog/internal/ratelimit"
	"skucatalog/internal/util"
	"skucatalog/pkg/domain"
	"skucatalog/services/assistant/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	InternalToken string
	// ChatLimiter guards the public chat endpoint. Nil disables limiting.
	ChatLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the assistant service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	internalToken  string
	chatLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		internalToken:  cfg.InternalToken,
		chatLimiter:    cfg.ChatLimiter,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("assistant", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/notifications", s.handleNotifications)
	s.mux.HandleFunc("/api/notifications/pending", s.handlePending)
	s.mux.HandleFunc("/api/notifications/clear", s.handleClear)
	s.mux.HandleFunc("/api/notifications/", s.handleNotificationAction)
	s.mux.HandleFunc("/api/changes/dataset", s.handleDatasetSync)
	s.mux.HandleFunc("/api/changes/validate", s.handleValidate)
	s.mux.HandleFunc("/internal/changes/ocr", s.handleOCRReport)
	s.mux.HandleFunc("/api/context/stats", s.handleContextStats)
	s.mux.HandleFunc("/api/context/reset", s.handleContextReset)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowChat(w, r) {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	writeJSON(w, http.StatusOK, s.app.ProcessMessage(r.Context(), req.Message))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items := s.app.Engine().Notifications()
	if items == nil {
		items = []domain.ChangeNotification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items := s.app.Engine().Pending()
	if items == nil {
		items = []domain.ChangeNotification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.app.Engine().ClearNotifications()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type notificationActionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleNotificationAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || sub != "handle" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req notificationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	handled, err := s.app.Engine().HandleNotification(r.Context(), id, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotificationNotFound):
			notFound(w, "notification not found")
		case errors.Is(err, app.ErrInvalidAction):
			writeError(w, http.StatusBadRequest, "invalid action")
		default:
			writeError(w, http.StatusBadGateway, "failed to apply change")
		}
		return
	}
	writeJSON(w, http.StatusOK, handled)
}

// handleDatasetSync accepts a JSON array of records. Anything other than a
// list is rejected up front; nothing is processed partially.
func (s *Server) handleDatasetSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var incoming []domain.SKU
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil || incoming == nil {
		// a JSON null decodes into a nil slice without error
		writeError(w, http.StatusBadRequest, "expected a JSON list of records")
		return
	}
	created, err := s.app.Engine().DetectDatasetChanges(r.Context(), incoming)
	if err != nil {
		writeError(w, http.StatusBadGateway, "dataset sync failed")
		return
	}
	if created == nil {
		created = []domain.ChangeNotification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": created, "total": len(created)})
}

type validateRequest struct {
	Original domain.SKU `json:"original"`
	Updated  domain.SKU `json:"updated"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, s.app.Engine().ValidateSKUChanges(req.Original, req.Updated))
}

type ocrReportRequest struct {
	SKUData    domain.SKU `json:"sku_data"`
	Confidence float64    `json:"confidence"`
}

func (s *Server) handleOCRReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.authorizeInternal(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ocrReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n := s.app.Engine().DetectOCRChanges(r.Context(), req.SKUData, req.Confidence)
	writeJSON(w, http.StatusOK, map[string]any{"notification": n})
}

func (s *Server) handleContextStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Stats())
}

func (s *Server) handleContextReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	fresh := s.app.ResetContext()
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": fresh.SessionID})
}

func (s *Server) authorizeInternal(r *http.Request) bool {
	if s.internalToken == "" {
		return false
	}
	token := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.internalToken)) == 1
}

func (s *Server) allowChat(w http.ResponseWriter, r *http.Request) bool {
	if s.chatLimiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if s.chatLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many chat requests")
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForAssistant(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForAssistant(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "message required":
		return "CHAT_MESSAGE_REQUIRED"
	case message == "too many chat requests":
		return "CHAT_RATE_LIMITED"
	case message == "notification not found":
		return "NOTIFICATION_NOT_FOUND"
	case message == "invalid action":
		return "NOTIFICATION_INVALID_ACTION"
	case message == "failed to apply change":
		return "NOTIFICATION_APPLY_FAILED"
	case message == "expected a json list of records":
		return "DATASET_INVALID_PAYLOAD"
	case message == "dataset sync failed":
		return "DATASET_SYNC_FAILED"
	case message == "invalid json body":
		return "ASSISTANT_INVALID_REQUEST"
	case message == "unauthorized":
		return "SYSTEM_UNAUTHORIZED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "ASSISTANT_INVALID_REQUEST"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
