package cmd

import (
	"context"
	"net/http"

	"relun-backend/internal/config"
	"relun-backend/internal/handlers"
	"relun-backend/internal/metrics"
	"relun-backend/internal/middleware"
	"relun-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// cacheLayer is everything the services keep in Redis
type cacheLayer interface {
	services.UnreadCache
	services.OTPThrottle
	services.TokenBlacklist
	Ping(ctx context.Context) error
}

// deps are the outer collaborators an app is assembled from
type deps struct {
	backend *backend
	cache   cacheLayer
	images  services.ImageStore
	pusher  services.Pusher
	email   services.OTPSender
	sms     services.OTPSender
	metrics *metrics.Metrics
}

// app holds the wired services and handlers
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	hub     *services.WSHub
	auth    *services.AuthService

	health    *handlers.HealthHandler
	authH     *handlers.AuthHandler
	profileH  *handlers.ProfileHandler
	swipeH    *handlers.SwipeHandler
	matchH    *handlers.MatchHandler
	chatH     *handlers.ChatHandler
	websocket *handlers.WebSocketHandler
}

func newApp(cfg *config.Config, d deps) *app {
	b := d.backend
	hub := services.NewWSHub()

	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	auth := services.NewAuthService(services.AuthDeps{
		Tx:             b.db,
		Users:          b.users,
		Profiles:       b.profiles,
		RefreshTokens:  b.refreshTokens,
		Tokens:         tokens,
		Throttle:       d.cache,
		Blacklist:      d.cache,
		EmailSender:    d.email,
		SMSSender:      d.sms,
		OTPTTL:         cfg.OTP.TTL,
		ResendInterval: cfg.OTP.ResendInterval,
	})
	profiles := services.NewProfileService(b.db, b.users, b.profiles, b.photos, d.images)
	matches := services.NewMatchService(services.MatchDeps{
		Tx:       b.db,
		Users:    b.users,
		Profiles: b.profiles,
		Photos:   b.photos,
		Swipes:   b.swipes,
		Matches:  b.matches,
		Messages: b.messages,
		Unread:   d.cache,
		Hub:      hub,
		Pusher:   d.pusher,
		Metrics:  d.metrics,
	})
	swipes := services.NewSwipeService(b.db, b.users, b.swipes, matches, d.metrics)
	candidates := services.NewCandidateService(b.profiles, b.candidates,
		cfg.Discovery.RadiusKm, cfg.Discovery.DefaultLimit, cfg.Discovery.MaxLimit)
	chat := services.NewChatService(services.ChatDeps{
		Matches:  matches,
		Messages: b.messages,
		Unread:   d.cache,
		Hub:      hub,
		Metrics:  d.metrics,
	})

	return &app{
		cfg:     cfg,
		metrics: d.metrics,
		hub:     hub,
		auth:    auth,

		health:    handlers.NewHealthHandler(map[string]handlers.Pinger{"database": b, "cache": d.cache}),
		authH:     handlers.NewAuthHandler(auth, profiles),
		profileH:  handlers.NewProfileHandler(profiles),
		swipeH:    handlers.NewSwipeHandler(swipes, candidates),
		matchH:    handlers.NewMatchHandler(matches),
		chatH:     handlers.NewChatHandler(chat),
		websocket: handlers.NewWebSocketHandler(hub, auth, chat, d.metrics, cfg.WS.EventsPerSecond, cfg.WS.Burst),
	}
}

// router mounts every route
func (a *app) router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.metrics))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(a.cfg.Server.CORSOrigin))

	r.Get("/health", a.health.Health)
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/ws", a.websocket.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/request-otp", a.authH.RequestOTP)
			r.Post("/verify-otp", a.authH.VerifyOTP)
			r.Post("/refresh", a.authH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(a.auth))
				r.Post("/complete-profile", a.authH.CompleteProfile)
				r.Get("/me", a.authH.Me)
				r.Post("/logout", a.authH.Logout)
				r.Put("/push-token", a.authH.UpdatePushToken)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(a.auth))

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", a.profileH.GetProfile)
				r.Put("/", a.profileH.UpdateProfile)
				r.Post("/photos", a.profileH.UploadPhotos)
				r.Delete("/photos/{id}", a.profileH.DeletePhoto)
				r.Get("/{userId}", a.profileH.GetUserProfile)
			})

			r.Route("/swipes", func(r chi.Router) {
				r.Post("/", a.swipeH.CreateSwipe)
				r.Get("/", a.swipeH.ListSwipes)
				r.Get("/potential", a.swipeH.PotentialMatches)
			})

			r.Route("/matches", func(r chi.Router) {
				r.Get("/", a.matchH.ListMatches)
				r.Get("/{id}", a.matchH.GetMatch)
				r.Delete("/{id}", a.matchH.Unmatch)
				r.Post("/{id}/block", a.matchH.Block)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/unread/count", a.chatH.UnreadCount)
				r.Get("/{matchId}", a.chatH.GetMessages)
				r.Post("/{matchId}", a.chatH.SendMessage)
				r.Delete("/{matchId}/{messageId}", a.chatH.DeleteMessage)
			})
		})
	})

	return r
}
