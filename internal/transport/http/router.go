package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"playroom/internal/auth"
	"playroom/internal/config"
	"playroom/internal/store"
	"playroom/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st store.Backend, cfg config.ServerConfig, sessCfg config.SessionConfig, verifier *auth.Verifier) *chi.Mux {
	roomHandlers := NewRoomHandlers(st, sessCfg, ws.NewServer(st, sessCfg.HeartbeatInterval))
	adminHandlers := NewAdminHandlers(st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Route("/rooms/{room_id}", func(r chi.Router) {
			r.Use(PlayerAuthMiddleware(verifier))
			r.Get("/", roomHandlers.Get())
			r.Post("/join", roomHandlers.Join())
			r.Post("/reconnect", roomHandlers.Reconnect())
			r.Post("/heartbeat", roomHandlers.Heartbeat())
			r.Post("/score", roomHandlers.Score())
			r.Post("/finish", roomHandlers.Finish())
			r.Post("/leave", roomHandlers.Leave())
			r.Get("/live", roomHandlers.Live())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/rooms", adminHandlers.CreateRoom())
			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})

	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY is empty; admin routes are open")
	}
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
