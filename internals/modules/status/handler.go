package status

import (
	"net/http"
	"strconv"

	middle "pulsewatch/internals/middleware"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// target resolves the caller and the endpoint id, writing the error
// response itself when either is missing.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (owner, id uuid.UUID, ok bool) {
	reqID := middleware.GetReqID(r.Context())
	user, found := middle.UserFromContext(r.Context())
	if !found {
		utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "user is unauthorised")
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "endpointID"))
	if err != nil {
		utils.WriteError(w, http.StatusNotFound, reqID, apperror.NotFound, "endpoint not found")
		return uuid.Nil, uuid.Nil, false
	}
	return user.OwnerID, id, true
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	view, err := h.service.Status(ctx, owner, id)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, utils.MsgStatusFetched, view)
}

// GetHistory serves /history?limit=N.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.WriteError(w, http.StatusBadRequest, reqID, apperror.InvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.service.History(ctx, owner, id, limit)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, utils.MsgHistoryFetched, recs)
}

func (h *Handler) GetSLO(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	snap, err := h.service.SLO(ctx, owner, id)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, utils.MsgSLOFetched, snap)
}

func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	view, err := h.service.Alerts(ctx, owner, id)
	if err != nil {
		utils.FromAppError(w, reqID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reqID, utils.MsgAlertsFetched, view)
}
