package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yegors/co-radar/internal/adsb"
	"github.com/yegors/co-radar/internal/config"
	"github.com/yegors/co-radar/internal/trace"
	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

// Router handles HTTP routing
type Router struct {
	handler        *Handler
	wsServer       *websocket.Server
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new router
func NewRouter(
	adsbService *adsb.Service,
	wsServer *websocket.Server,
	hist HistoryConfig,
	traces *trace.Client,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		handler:        NewHandler(adsbService, wsServer, hist, traces, log),
		wsServer:       wsServer,
		allowedOrigins: cfg.Server.CORSAllowedOrigins,
		logger:         log.Named("router"),
	}
}

// Routes returns the HTTP handler for all routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(r.requestLogger)
	router.Use(middleware.Recoverer)
	// an empty list means cors would allow everything, so leave it off
	if len(r.allowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: r.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", r.handler.GetHealth)
		api.Get("/stats", r.handler.GetStats)
		api.Get("/receiver", r.handler.GetReceiver)

		api.Get("/aircraft", r.handler.GetAllAircraft)
		api.Get("/aircraft/{hex}", r.handler.GetAircraftByHex)
		api.Get("/aircraft/{hex}/track", r.handler.GetAircraftTrack)
		api.Delete("/aircraft/{hex}/track", r.handler.ClearAircraftTrack)

		api.Get("/heatmap", r.handler.GetHeatmap)
		api.Get("/replay", r.handler.GetReplay)
		api.Get("/trace/{hex}", r.handler.GetTrace)
	})

	if r.wsServer != nil {
		router.Get("/ws", r.wsServer.HandleConnection)
	}

	return router
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		r.logger.Debug("HTTP request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(req.Context())))
	})
}
