// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router assembles the chi route tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"emailstudio/internal/handlers"
	"emailstudio/internal/middleware"
)

// New builds the HTTP handler with logging, recovery, and CORS applied
// to the API routes.
func New(api *handlers.API, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", api.Health)
	r.Get("/readyz", api.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(allowedOrigins))

		r.Post("/generate", api.Generate)
		r.Get("/history", api.History)
		r.Get("/meta", api.GetMeta)
		r.Post("/render-html", api.RenderHTML)

		r.Route("/batch/{batchId}", func(r chi.Router) {
			r.Get("/", api.GetBatch)
			r.Put("/", api.Update)
		})

		r.Post("/esp/draft", api.PublishDraft)
	})

	return r
}
