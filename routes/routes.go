package routes

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/LegalDragon/pickleball-community/docs"
	"github.com/LegalDragon/pickleball-community/handlers"
	"github.com/LegalDragon/pickleball-community/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Template  *handlers.TemplateHandler
	Schedule  *handlers.ScheduleHandler
	Drawing   *handlers.DrawingHandler
	Phase     *handlers.PhaseHandler
	WebSocket *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)
	staff := middleware.Authorize(middleware.RoleOrganizer, middleware.RoleAdmin)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Без Timeout: соединение жеребьёвки долгоживущее.
	router.Get("/ws/divisions/{divisionID}/drawing", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(60 * time.Second))

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.Template.ListTemplates)
			r.Get("/{templateID}", h.Template.GetTemplate)
			r.Get("/{templateID}/preview", h.Template.PreviewTemplate)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(staff)
				r.Post("/", h.Template.CreateTemplate)
				r.Put("/{templateID}", h.Template.UpdateTemplate)
				r.Delete("/{templateID}", h.Template.DeleteTemplate)
			})
		})

		r.Route("/divisions/{divisionID}", func(r chi.Router) {
			r.Get("/schedule", h.Schedule.GetSchedule)
			r.Get("/drawing", h.Drawing.GetDrawingState)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(staff)
				r.Post("/schedule", h.Schedule.GenerateSchedule)
				r.Post("/drawing", h.Drawing.StartDrawing)
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.Authorize(middleware.RoleAdmin))
				r.Post("/byes/recompute", h.Phase.RecomputeByes)
			})
		})

		r.Route("/drawings/{sessionID}", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(staff)
			r.Post("/next", h.Drawing.DrawNext)
			r.Post("/confirm", h.Drawing.ConfirmDrawing)
			r.Post("/redraw", h.Drawing.Redraw)
		})

		r.Route("/phases/{phaseID}", func(r chi.Router) {
			r.Get("/byes", h.Phase.GetByes)
			r.Get("/game-settings", h.Phase.GetGameSettings)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(staff)
				r.Put("/slots/{slotNumber}", h.Phase.AssignSlot)
				r.Delete("/slots/{slotNumber}", h.Phase.ClearSlot)
			})
		})
	})
}
