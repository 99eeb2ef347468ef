package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"robottracker/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	cfg := eng.AppConfig()
	cfg.RLock()
	web := cfg.Web
	cfg.RUnlock()

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(web.SessionSecret),
		eventHub: hub,
	}

	if db := eng.DB(); db != nil {
		h.ensureDefaultAdmin(db, web.AdminPassword)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Observer streams are long-lived; keep them out of the compressor.
	r.Get("/events", h.SSEHandler)
	r.Get("/ws", h.WSHandler)

	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		// Robots report here without a session.
		r.Post("/api/update_data", h.apiUpdateData)

		r.Route("/api", func(r chi.Router) {
			r.Get("/robots", h.apiListRobots)
			r.Get("/robots/history", h.apiRobotHistory)
			r.Get("/robots/{id}", h.apiGetRobot)
			r.Get("/health", h.apiHealthCheck)
			r.Get("/audit", h.apiAuditLog)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/api/robots/{id}/evict", h.apiEvictRobot)
			r.Get("/api/config", h.apiGetConfig)
			r.Post("/api/config/tracker", h.apiSaveTrackerConfig)
			r.Post("/api/config/messaging", h.apiSaveMessagingConfig)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
