package handler

import (
	"net/http"

	"github.com/arena-wallet/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ListTournaments returns tournaments, optionally filtered by ?status=
func (h *Handler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	status := domain.TournamentStatus(r.URL.Query().Get("status"))
	tournaments, err := h.svc.Tournaments.List(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, tournaments)
}

// GetTournament returns a tournament
func (h *Handler) GetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Tournaments.Get(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, t)
}

// ListParticipants returns a tournament's participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.svc.Tournaments.Participants(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, participants)
}

// CreateTournament creates a tournament
func (h *Handler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTournamentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	t, err := h.svc.Tournaments.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCreated(w, t)
}

// UpdateTournament applies a partial update
func (h *Handler) UpdateTournament(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTournamentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	t, err := h.svc.Tournaments.Update(r.Context(), chi.URLParam(r, "tournamentID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, t)
}

// DeleteTournament deletes a tournament
func (h *Handler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	if err := h.svc.Tournaments.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, map[string]string{"message": "tournament deleted", "id": id})
}

// JoinTournament charges the caller's entry fee and registers them
func (h *Handler) JoinTournament(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Ledger.Join(r.Context(), chi.URLParam(r, "tournamentID"), caller(r).ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, result)
}

// SubmitResults records results and pays prizes
func (h *Handler) SubmitResults(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitResultsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	settled, err := h.svc.Settlement.SubmitResults(r.Context(), chi.URLParam(r, "tournamentID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, settled)
}

// GetResults returns a tournament's results
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Settlement.GetResults(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, results)
}

// CancelTournament cancels a tournament and refunds its entries
func (h *Handler) CancelTournament(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Settlement.Cancel(r.Context(), chi.URLParam(r, "tournamentID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, result)
}

// DeclareWinner pays the prize pool to a single winner
func (h *Handler) DeclareWinner(w http.ResponseWriter, r *http.Request) {
	var req domain.DeclareWinnerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	t, err := h.svc.Settlement.DeclareWinner(r.Context(), chi.URLParam(r, "tournamentID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, t)
}

// GetLeaderboard returns the top prize winners, ?limit= caps the size
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	entries, err := h.svc.Users.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, entries)
}
