package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arena-wallet/internal/domain"
)

// UserIDHeader carries the caller's id as asserted by the identity gateway
const UserIDHeader = "X-User-ID"

type profileKey struct{}

func withProfile(ctx context.Context, p *domain.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

func profileFrom(ctx context.Context) (*domain.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(*domain.Profile)
	return p, ok && p != nil
}

// caller returns the authenticated profile. Routes behind authenticate
// always have one.
func caller(r *http.Request) *domain.Profile {
	p, _ := profileFrom(r.Context())
	return p
}

// authenticate loads the caller's profile. Role checks use the stored
// role, never anything the client sends.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.loadProfile(r)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withProfile(r.Context(), p)))
	})
}

// optionalIdentity loads the profile when an identity header is present
func (h *Handler) optionalIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserIDHeader) == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := h.loadProfile(r)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withProfile(r.Context(), p)))
	})
}

func (h *Handler) loadProfile(r *http.Request) (*domain.Profile, error) {
	id := r.Header.Get(UserIDHeader)
	if id == "" {
		return nil, domain.ErrUnauthorized
	}
	p, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return p, nil
}

// requireAdmin rejects callers without the admin role
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := profileFrom(r.Context())
		if !ok {
			writeStatus(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		if !p.IsAdmin() {
			writeStatus(w, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeStatus writes an error envelope without a Handler
func writeStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err.Error()})
}
