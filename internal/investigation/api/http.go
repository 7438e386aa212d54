package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/investigation/app"
	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Handler provides HTTP handlers for the investigation module
type Handler struct {
	svc *app.Service
}

func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the investigation routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/cases/{caseID}", func(r chi.Router) {
		r.Get("/suspects", h.ListCaseSuspects)
		r.Post("/suspects", h.AddSuspect)
		r.Get("/warrants", h.ListWarrants)
		r.Post("/warrants", h.RequestWarrant)
		r.Get("/verdicts", h.ListVerdicts)
		r.Post("/verdicts", h.RecordVerdict)
		r.Get("/evidence", h.ListEvidence)
		r.Post("/evidence", h.RecordEvidence)
		r.Get("/board", h.GetBoard)
		r.Get("/board-connections", h.ListBoardConnections)
		r.Post("/board-connections", h.ConnectOnBoard)
	})

	r.Get("/suspects", h.SearchSuspects)
	r.Route("/suspects/{suspectID}", func(r chi.Router) {
		r.Get("/", h.GetSuspect)
		r.Post("/main", h.SetMainSuspect)
		r.Post("/arrest", h.MarkArrested)
		r.Post("/toggle-board", h.ToggleSuspectBoard)
		r.Get("/interrogations", h.ListInterrogations)
		r.Post("/interrogations", h.RecordInterrogation)
	})

	r.Post("/warrants/{warrantID}/review", h.ReviewWarrant)
	r.Post("/interrogations/{interrogationID}/feedback", h.GiveFeedback)
	r.Post("/evidence/{evidenceID}/verify", h.VerifyBiological)
	r.Post("/evidence/{evidenceID}/toggle-board", h.ToggleBoard)
	r.Delete("/board-connections/{connectionID}", h.Disconnect)

	return r
}

// --- Suspects ---

func (h *Handler) ListCaseSuspects(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	list(w, func() (any, error) {
		return h.svc.ListSuspects(r.Context(), actor, domain.SuspectFilter{CaseID: caseID})
	})
}

func (h *Handler) SearchSuspects(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var filter domain.SuspectFilter
	if v := q.Get("case_id"); v != "" {
		id, err := types.ParseID(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid case ID"))
			return
		}
		filter.CaseID = id
	}
	if v := q.Get("status"); v != "" {
		status := domain.SuspectStatus(v)
		filter.Status = &status
	}
	if v := q.Get("national_code"); v != "" {
		code, err := types.ParseNationalCode(v)
		if err != nil {
			writeError(w, errors.BadRequest("invalid national code"))
			return
		}
		filter.NationalCode = code
	}

	list(w, func() (any, error) {
		return h.svc.ListSuspects(r.Context(), actor, filter)
	})
}

func (h *Handler) AddSuspect(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var req domain.SuspectInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.AddSuspect(r.Context(), actor, caseID, req)
	})
}

func (h *Handler) GetSuspect(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.GetSuspect(r.Context(), actor, id)
	})
}

func (h *Handler) SetMainSuspect(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	var req app.SetMainInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.SetMainSuspect(r.Context(), actor, id, req)
	})
}

func (h *Handler) MarkArrested(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.MarkArrested(r.Context(), actor, id)
	})
}

// --- Warrants ---

func (h *Handler) ListWarrants(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	list(w, func() (any, error) {
		return h.svc.ListWarrants(r.Context(), actor, caseID)
	})
}

func (h *Handler) RequestWarrant(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var req app.WarrantInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.RequestWarrant(r.Context(), actor, caseID, req)
	})
}

func (h *Handler) ReviewWarrant(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "warrantID")
	if !ok {
		return
	}
	var req app.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.ReviewWarrant(r.Context(), actor, id, req)
	})
}

// --- Interrogations ---

func (h *Handler) ListInterrogations(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	list(w, func() (any, error) {
		return h.svc.ListInterrogations(r.Context(), actor, id)
	})
}

func (h *Handler) RecordInterrogation(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	var req app.InterrogationInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.RecordInterrogation(r.Context(), actor, id, req)
	})
}

func (h *Handler) GiveFeedback(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "interrogationID")
	if !ok {
		return
	}
	var req app.FeedbackInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.GiveFeedback(r.Context(), actor, id, req)
	})
}

// --- Verdicts ---

func (h *Handler) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	list(w, func() (any, error) {
		return h.svc.ListVerdicts(r.Context(), actor, caseID)
	})
}

func (h *Handler) RecordVerdict(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var req domain.VerdictInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.RecordVerdict(r.Context(), actor, caseID, req)
	})
}

// --- Evidence ---

func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var kind *domain.EvidenceKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k := domain.EvidenceKind(v)
		kind = &k
	}
	list(w, func() (any, error) {
		return h.svc.ListEvidence(r.Context(), actor, caseID, kind)
	})
}

func (h *Handler) RecordEvidence(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var req app.EvidenceInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.RecordEvidence(r.Context(), actor, caseID, req)
	})
}

func (h *Handler) VerifyBiological(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "evidenceID")
	if !ok {
		return
	}
	var req app.VerifyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.VerifyBiological(r.Context(), actor, id, req)
	})
}

func (h *Handler) ToggleBoard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "evidenceID")
	if !ok {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.ToggleBoard(r.Context(), actor, id)
	})
}

// --- Board ---

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.Board(r.Context(), actor, caseID)
	})
}

func (h *Handler) ListBoardConnections(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	list(w, func() (any, error) {
		return h.svc.ListBoardConnections(r.Context(), actor, caseID)
	})
}

func (h *Handler) ConnectOnBoard(w http.ResponseWriter, r *http.Request) {
	actor, caseID, ok := actorAndID(w, r, "caseID")
	if !ok {
		return
	}
	var req domain.BoardConnectionInput
	if !decode(w, r, &req) {
		return
	}
	respond(w, http.StatusCreated, func() (any, error) {
		return h.svc.ConnectOnBoard(r.Context(), actor, caseID, req)
	})
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "connectionID")
	if !ok {
		return
	}
	if err := h.svc.Disconnect(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleSuspectBoard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "suspectID")
	if !ok {
		return
	}
	respond(w, http.StatusOK, func() (any, error) {
		return h.svc.ToggleSuspectBoard(r.Context(), actor, id)
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

func actorAndID(w http.ResponseWriter, r *http.Request, param string) (auth.Actor, types.ID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return auth.Actor{}, "", false
	}
	id, err := types.ParseID(chi.URLParam(r, param))
	if err != nil {
		writeError(w, errors.BadRequest("invalid "+param))
		return auth.Actor{}, "", false
	}
	return actor, id, true
}

func respond(w http.ResponseWriter, status int, fn func() (any, error)) {
	v, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}

func list(w http.ResponseWriter, fn func() (any, error)) {
	v, err := fn()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": v})
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
