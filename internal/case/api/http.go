package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/case/app"
	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Handler provides HTTP handlers for the case module
type Handler struct {
	svc *app.Service
}

// NewHandler creates a new case handler
func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the case routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCases)
	r.Post("/", h.FileComplaint)
	r.Post("/scenes", h.RegisterScene)
	r.Get("/stats", h.Stats)

	r.Route("/{caseID}", func(r chi.Router) {
		r.Get("/", h.GetCase)

		// Workflow transitions
		r.Post("/trainee-review", h.TraineeReview)
		r.Post("/resubmit", h.Resubmit)
		r.Post("/officer-review", h.OfficerReview)
		r.Post("/submit-resolution", h.SubmitResolution)
		r.Post("/sergeant-review", h.SergeantReview)
		r.Post("/confirm-arrests", h.ConfirmArrests)
		r.Post("/chief-review", h.ChiefReview)

		r.Post("/complainants", h.AddComplainant)

		// Timeline
		r.Get("/events", h.GetEvents)
	})

	return r
}

// --- Request types ---

type AddComplainantRequest struct {
	UserID types.ID `json:"user_id"`
}

// --- Handlers ---

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := domain.ListFilter{Search: q.Get("search")}

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Status = &status
	}

	if l := q.Get("crime_level"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || !domain.CrimeLevel(n).Valid() {
			writeError(w, errors.BadRequest("invalid crime level"))
			return
		}
		level := domain.CrimeLevel(n)
		filter.CrimeLevel = &level
	}

	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	cases, total, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if cases == nil {
		cases = []domain.Case{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  cases,
		"total": total,
	})
}

func (h *Handler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req app.FileComplaintInput
	if !decode(w, r, &req) {
		return
	}

	c, err := h.svc.FileComplaint(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) RegisterScene(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req app.RegisterSceneInput
	if !decode(w, r, &req) {
		return
	}

	c, err := h.svc.RegisterScene(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) TraineeReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req app.TraineeReviewInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.TraineeReview(r.Context(), actor, id, req) })
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req app.ResubmitInput
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.Resubmit(r.Context(), actor, id, req) })
}

func (h *Handler) OfficerReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req app.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.OfficerReview(r.Context(), actor, id, req) })
}

func (h *Handler) SubmitResolution(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.SubmitResolution(r.Context(), actor, id) })
}

func (h *Handler) SergeantReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req app.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.SergeantReview(r.Context(), actor, id, req) })
}

func (h *Handler) ConfirmArrests(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.ConfirmArrests(r.Context(), actor, id) })
}

func (h *Handler) ChiefReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req app.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.ChiefReview(r.Context(), actor, id, req) })
}

func (h *Handler) AddComplainant(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	var req AddComplainantRequest
	if !decode(w, r, &req) {
		return
	}
	userID, err := types.ParseID(req.UserID.String())
	if err != nil {
		writeError(w, errors.Validation("invalid user ID", map[string]string{"field": "user_id"}))
		return
	}
	respond(w, func() (*domain.Case, error) { return h.svc.AddComplainant(r.Context(), actor, id, userID) })
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndCase(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	evts, err := h.svc.Events(r.Context(), actor, id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if evts == nil {
		evts = []domain.CaseEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  evts,
		"total": len(evts),
	})
}

// --- Helpers ---

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
	}
	return actor, ok
}

func actorAndCase(w http.ResponseWriter, r *http.Request) (auth.Actor, types.ID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return auth.Actor{}, "", false
	}

	id, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return auth.Actor{}, "", false
	}
	return actor, id, true
}

func respond(w http.ResponseWriter, fn func() (*domain.Case, error)) {
	c, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return false
	}
	return true
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
