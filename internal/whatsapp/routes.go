package whatsapp

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.HandleRoot)
	r.Get("/health", h.HandleHealth)
	r.Get("/agents", h.HandleAgents)
	r.Post("/webhook/whatsapp", h.HandleWebhook)
}
