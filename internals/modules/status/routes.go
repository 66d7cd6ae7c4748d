package status

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/{endpointID}/status", h.GetStatus)
	r.Get("/{endpointID}/history", h.GetHistory)
	r.Get("/{endpointID}/slo", h.GetSLO)
	r.Get("/{endpointID}/alerts", h.GetAlerts)

	return r
}
