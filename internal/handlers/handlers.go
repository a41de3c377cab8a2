// Package handlers exposes the service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"qrshare/internal/models"
	"qrshare/internal/service"
)

type Handler struct {
	svc     *service.Service
	health  func(context.Context) error
	log     *slog.Logger
	maxBody int64
}

// New builds the handler set. health is called by /healthz and is usually
// the database ping.
func New(svc *service.Service, health func(context.Context) error, log *slog.Logger, maxContentBytes int) *Handler {
	if log == nil {
		log = slog.Default()
	}
	// An ASCII-only encoder writes a control byte as \u00XX, six bytes for
	// one, so that is the worst case per byte of text. The store enforces the
	// real limit; zero means no body cap either.
	var maxBody int64
	if maxContentBytes > 0 {
		maxBody = int64(maxContentBytes)*6 + 1024
	}
	return &Handler{svc: svc, health: health, log: log, maxBody: maxBody}
}

// Routes mounts every endpoint on a fresh chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.WithRecover, h.RequestLogger)

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(RequireCredentials)
		r.Get("/", h.Ping)
		r.Get("/code/get", h.GetCode)
		r.Patch("/code/patch", h.PatchCode)
		r.Get("/user/get", h.GetUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned; net/http has no constant for it.
const statusClientClosedRequest = 499

type codeResult struct {
	Content  *string `json:"content"`
	UpdateAt *int64  `json:"update_at"`
}

type codeUpdate struct {
	Content *string `json:"content"`
}

func toCodeResult(c models.Content) codeResult {
	if c.Empty {
		return codeResult{}
	}
	text, ts := c.Text, c.UpdatedAt
	return codeResult{Content: &text, UpdateAt: &ts}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		h.log.ErrorContext(r.Context(), "health check failed", "error", err)
		writeDetail(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context(), credentialsFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeDetail(w, http.StatusOK, "Connection successful!")
}

func (h *Handler) GetCode(w http.ResponseWriter, r *http.Request) {
	followID, ok := queryInt(r, "follow_user_id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "follow_user_id must be an integer")
		return
	}
	c, err := h.svc.FollowedContent(r.Context(), credentialsFrom(r.Context()), followID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCodeResult(c))
}

func (h *Handler) PatchCode(w http.ResponseWriter, r *http.Request) {
	cred := credentialsFrom(r.Context())

	ownerID := cred.ID
	if r.URL.Query().Has("owner_id") {
		var ok bool
		if ownerID, ok = queryInt(r, "owner_id"); !ok {
			writeDetail(w, http.StatusBadRequest, "owner_id must be an integer")
			return
		}
	}

	var body codeUpdate
	if err := h.decodeBody(w, r, &body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "content too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Content == nil {
		writeDetail(w, http.StatusBadRequest, "content is required")
		return
	}

	c, err := h.svc.UpdateContent(r.Context(), cred, ownerID, *body.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCodeResult(c))
}

// decodeBody reads exactly one JSON value; anything after it is an error.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("trailing data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	checkID, ok := queryInt(r, "check_id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "check_id must be an integer")
		return
	}
	p, err := h.svc.Profile(r.Context(), credentialsFrom(r.Context()), checkID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// writeError maps service errors to statuses. Auth failures share one body
// whatever the cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAuthFailure):
		writeDetail(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "cannot modify content of another user")
	case errors.Is(err, service.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, "content too large")
	case errors.Is(err, service.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeDetail(w, http.StatusServiceUnavailable, "storage busy, retry later")
	case errors.Is(err, context.Canceled):
		// The client is gone; the status only shows up in the request log.
		writeDetail(w, statusClientClosedRequest, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeDetail(w, http.StatusServiceUnavailable, "request timed out, retry later")
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(key)), 10, 64)
	return n, err == nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
