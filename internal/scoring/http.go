package scoring

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
)

// Handler serves rankings and statistics
type Handler struct {
	ranker *Ranker
}

func NewHandler(ranker *Ranker) *Handler {
	return &Handler{ranker: ranker}
}

// PublicRoutes needs no authentication.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/most-wanted", h.mostWanted)
	return r
}

// Routes requires an authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rankings/criminals", h.criminalRanking)
	r.Get("/stats", h.stats)
	return r
}

func (h *Handler) mostWanted(w http.ResponseWriter, r *http.Request) {
	board, err := h.ranker.MostWanted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) criminalRanking(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.ActorFrom(r.Context()); !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	entries, err := h.ranker.CriminalRanking(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.ActorFrom(r.Context()); !ok {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	s, err := h.ranker.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		zap.S().Errorw("unhandled error", "error", err)
		appErr = errors.Internal(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]any{"error": appErr})
}
