package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/trackclash/trackclash/handlers"
	"github.com/trackclash/trackclash/middleware"
	"github.com/trackclash/trackclash/models"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Entrant    *handlers.EntrantHandler
	Vote       *handlers.VoteHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	organizerOnly := middleware.RequireRole(models.RoleOrganizer)

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Post("/auth/signup", h.Auth.RegisterHandler)
	router.Post("/auth/login", h.Auth.LoginHandler)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListHandler)
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", h.Tournament.GetBracketHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{tournamentID}/entrants", h.Entrant.RegisterHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)
				r.Post("/", h.Tournament.CreateHandler)
				r.Post("/{tournamentID}/start", h.Tournament.StartHandler)
			})
		})
	})

	router.Route("/entrants", func(r chi.Router) {
		r.Get("/{entrantID}", h.Entrant.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Put("/{entrantID}/track", h.Entrant.UploadTrackHandler)
		})
	})

	router.Route("/matchups", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{matchupID}/votes", h.Vote.CastVoteHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)
				r.Post("/{matchupID}/resolve", h.Vote.ResolveHandler)
			})
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
