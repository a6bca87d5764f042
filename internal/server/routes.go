package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, spaDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("SurvivorQuest API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, store))

	// Mobile client — session token instead of admin cookie.
	r.Route("/api/mobile", func(r chi.Router) {
		r.Post("/session/join", handleJoin(store))
		r.Get("/session/state", handleSessionState(store))
		r.Post("/team/claim", handleTeamClaim(store))
		r.Post("/team/randomize", handleTeamRandomize(store))
		r.Post("/team/location", handleTeamLocation(store))
		r.Post("/task/complete", handleTaskComplete(store))
	})

	r.Post("/api/admin/login", handleAdminLogin(store))
	r.Post("/api/admin/logout", handleAdminLogout(logger, store))

	// Admin panel — everything below requires the session cookie.
	r.Group(func(r chi.Router) {
		r.Use(adminAuthMiddleware(store))

		r.Get("/api/admin/me", handleAdminMe(store))
		r.Get("/api/admin/realizations/{id}/overview", handleAdminOverview(store))

		r.Route("/api/games", func(r chi.Router) {
			r.Get("/", handleListStations(store))
			r.Post("/", handleCreateStation(store))
			r.Get("/{id}", handleGetStation(store))
			r.Put("/{id}", handleUpdateStation(store))
			r.Delete("/{id}", handleDeleteStation(store))
		})

		r.Route("/api/scenario", func(r chi.Router) {
			r.Get("/", handleListScenarios(store))
			r.Post("/", handleCreateScenario(store))
			r.Get("/{id}", handleGetScenario(store))
			r.Put("/{id}", handleUpdateScenario(store))
			r.Delete("/{id}", handleDeleteScenario(store))
		})

		r.Route("/api/realizations", func(r chi.Router) {
			r.Get("/", handleListRealizations(store))
			r.Post("/", handleCreateRealization(store))
			r.Get("/{id}", handleGetRealization(store))
			r.Put("/{id}", handleUpdateRealization(store))
			r.Delete("/{id}", handleDeleteRealization(store))
			r.Get("/{id}/stations", handleListRealizationStations(store))
			r.Put("/{id}/stations", handleUpdateRealizationStations(store))
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", handleListUsers(store))
			r.Post("/", handleCreateUser(store))
			r.Get("/{id}", handleGetUser(store))
			r.Put("/{id}", handleUpdateUser(store))
			r.Delete("/{id}", handleDeleteUser(store))
		})
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
