package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/reward/app"
	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Handler provides HTTP handlers for reward reports
type Handler struct {
	svc *app.Service
}

func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the authenticated reward routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Submit)
	r.Get("/lookup", h.VerifyPayout)

	r.Route("/{reportID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/officer-review", h.OfficerReview)
		r.Post("/detective-review", h.DetectiveReview)
		r.Post("/mark-paid", h.MarkPaid)
	})

	return r
}

// PublicRoutes registers the payment gateway callback, which carries no
// user session.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{reportID}/payment-callback", h.PaymentCallback)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var status *domain.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		status = &st
	}

	reports, err := h.svc.List(r.Context(), actor, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": reports})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req domain.SubmitInput
	if !decode(w, r, &req) {
		return
	}

	rep, err := h.svc.Submit(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) OfficerReview(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.OfficerReview)
}

func (h *Handler) DetectiveReview(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.svc.DetectiveReview)
}

type reviewFunc func(ctx context.Context, actor auth.Actor, id types.ID, in app.ReviewInput) (*domain.Report, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req app.ReviewInput
	if !decode(w, r, &req) {
		return
	}

	rep, err := fn(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req app.MarkPaidInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	rep, err := h.svc.MarkPaid(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "paid",
		"paid_at": rep.PaidAt,
	})
}

func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid report ID"))
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.PaymentCallback(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) VerifyPayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		code = q.Get("tracking_code")
	}

	payout, err := h.svc.VerifyPayout(r.Context(), actor, q.Get("national_code"), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

// --- Helpers ---

func requireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, errors.Unauthorized("authentication required"))
	}
	return actor, ok
}

func actorAndID(w http.ResponseWriter, r *http.Request) (auth.Actor, types.ID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return auth.Actor{}, "", false
	}
	id, err := types.ParseID(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid report ID"))
		return auth.Actor{}, "", false
	}
	return actor, id, true
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
