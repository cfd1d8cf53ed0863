package handlers

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(h.Identity)

			r.Get("/me", h.MeHandler)
			r.Get("/me/history", h.HistoryHandler)

			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", h.ListRoomsHandler)
				r.With(h.AdminOnly).Post("/", h.CreateRoomHandler)

				r.Route("/{code}", func(r chi.Router) {
					r.Get("/", h.GetRoomHandler)
					r.Post("/join", h.JoinHandler)
					r.Post("/mark", h.MarkHandler)
					r.Post("/claim", h.ClaimHandler)

					r.With(h.AdminOnly).Post("/draw", h.DrawHandler)
					r.With(h.AdminOnly).Post("/close", h.CloseHandler)
				})
			})

			r.With(h.AdminOnly).Get("/admin/users", h.ListUsersHandler)
		})
	})
}
