package handler

import (
	"net/http"

	"github.com/arena-wallet/internal/domain"
	"github.com/go-chi/chi/v5"
)

// UpsertUser creates or refreshes the caller's profile
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(UserIDHeader)
	if id == "" {
		h.writeServiceError(w, r, domain.ErrUnauthorized)
		return
	}

	var req domain.UpsertProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	p, err := h.svc.Users.Upsert(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, p)
}

// GetMe returns the caller's profile and joined tournaments
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Users.Me(r.Context(), caller(r).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, me)
}

// ListUsers returns every profile
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.svc.Users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, profiles)
}

// ListNotifications returns the caller's latest notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.Notifications.List(r.Context(), caller(r).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, notifications)
}

// MarkNotificationRead marks one of the caller's notifications read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if err := h.svc.Notifications.MarkRead(r.Context(), id, caller(r).ID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"id": id, "status": "read"})
}

// Broadcast queues an email to every user
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	count, err := h.svc.Notifications.Broadcast(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]any{"message": "broadcast queued", "recipients": count},
	})
}

type testEmailRequest struct {
	To string `json:"to"`
}

// TestEmail sends a test message to ?to= or the configured admin address
func (h *Handler) TestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	if req.To == "" {
		req.To = r.URL.Query().Get("to")
	}

	if err := h.svc.Notifications.TestEmail(r.Context(), req.To); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"message": "test email sent"})
}
