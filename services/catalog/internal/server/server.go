package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"skucatalog/internal/util"
	"skucatalog/pkg/domain"
	"skucatalog/pkg/store"
	"skucatalog/services/catalog/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the catalog service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("catalog", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/skus", s.handleSKUs)
	s.mux.HandleFunc("/api/skus/duplicates", s.handleDuplicates)
	s.mux.HandleFunc("/api/skus/", s.handleSKUByCode)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSKUs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearch(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SearchFilter{
		NDC:          strings.TrimSpace(q.Get("ndc")),
		Name:         strings.TrimSpace(q.Get("name")),
		Manufacturer: strings.TrimSpace(q.Get("manufacturer")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := domain.ParseSKUStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}
	if raw := q.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Page = n
		}
	}
	if raw := q.Get("pageSize"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.PageSize = n
		}
	}
	if q.Get("includeDeleted") == "true" {
		filter.IncludeDeleted = true
	}

	items, total, err := s.app.SearchSKUs(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []domain.SKU{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var sku domain.SKU
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&sku); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := s.app.CreateSKU(sku, actorFrom(r))
	if err != nil {
		if errors.Is(err, app.ErrExists) {
			writeError(w, http.StatusBadRequest, "sku already exists")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	groups, err := s.app.FindDuplicates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if groups == nil {
		groups = []domain.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// /api/skus/{code}, /api/skus/{code}/image, /api/skus/{code}/history
func (s *Server) handleSKUByCode(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/skus/")
	parts := strings.SplitN(path, "/", 2)
	code := parts[0]
	if code == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "image":
			s.handleImage(w, r, code)
		case "history":
			s.handleHistory(w, r, code)
		default:
			notFound(w, "not found")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		sku, ok, err := s.app.GetSKU(code)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			notFound(w, "sku not found")
			return
		}
		writeJSON(w, http.StatusOK, sku)
	case http.MethodPut:
		s.handleUpdate(w, r, code)
	case http.MethodPatch:
		s.handlePatch(w, r, code)
	case http.MethodDelete:
		if err := s.app.DeleteSKU(code, actorFrom(r)); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, code string) {
	var sku domain.SKU
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&sku); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.UpdateSKU(code, sku, actorFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request, code string) {
	var patch domain.SKUPatch
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.PatchSKU(code, patch, actorFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, code string) {
	switch r.Method {
	case http.MethodPost:
		s.handleImageUpload(w, r, code)
	case http.MethodGet:
		url, err := s.app.ImageURL(r.Context(), code)
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				notFound(w, "sku not found")
				return
			}
			notFound(w, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request, code string) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	sku, job, err := s.app.UploadImage(r.Context(), code, header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"sku": sku,
		"job": job,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, code string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	revs, err := s.app.ListRevisions(code, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if revs == nil {
		revs = []domain.Revision{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		notFound(w, "sku not found")
	case errors.Is(err, app.ErrExists):
		writeError(w, http.StatusBadRequest, "sku already exists")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// actorFrom reads the caller identity header, if present. Authentication is
// out of scope; this is plumbing for the revision history.
func actorFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor"))
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
		Code:      errorCodeForCatalog(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForCatalog(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "sku not found":
		return "SKU_NOT_FOUND"
	case message == "sku already exists":
		return "SKU_ALREADY_EXISTS"
	case message == "invalid status":
		return "SKU_INVALID_STATUS"
	case message == "ndc required", message == "name required":
		return "SKU_INVALID_REQUEST"
	case message == "invalid json body":
		return "SKU_INVALID_REQUEST"
	case message == "invalid form data":
		return "SKU_INVALID_UPLOAD_FORM"
	case strings.Contains(message, "file is required"):
		return "SKU_IMAGE_REQUIRED"
	case strings.Contains(message, "unsupported file type"):
		return "SKU_UNSUPPORTED_FILE_TYPE"
	case message == "no image for sku":
		return "SKU_IMAGE_NOT_FOUND"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "SKU_INVALID_REQUEST"
	case http.StatusNotFound:
		return "SKU_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
