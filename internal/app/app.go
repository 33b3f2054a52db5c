package app

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/caarlos0/env"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vrsjns/bearlink-sub000/internal/clicks"
	"github.com/vrsjns/bearlink-sub000/internal/config"
	"github.com/vrsjns/bearlink-sub000/internal/events"
	"github.com/vrsjns/bearlink-sub000/internal/geo"
	"github.com/vrsjns/bearlink-sub000/internal/handlers"
	"github.com/vrsjns/bearlink-sub000/internal/logger"
	"github.com/vrsjns/bearlink-sub000/internal/middleware"
	"github.com/vrsjns/bearlink-sub000/internal/policy"
	"github.com/vrsjns/bearlink-sub000/internal/signer"
	"github.com/vrsjns/bearlink-sub000/internal/storage"
)

func Run() error {
	_ = godotenv.Load()

	flag.StringVar(&config.Current.ServerAddress, "a", "", "Server address host:port")
	flag.StringVar(&config.Current.BaseURL, "b", "", "Base for short URLs")
	flag.StringVar(&config.Current.DatabaseDSN, "d", "", "Database source string")
	flag.StringVar(&config.Current.RedisAddr, "r", "", "Redis address host:port")
	flag.Parse()

	if err := env.Parse(&config.Current); err != nil {
		return err
	}
	config.SetDefaults()

	if err := logger.Initialize(); err != nil {
		return err
	}

	var store storage.Store
	if config.Current.DatabaseDSN != "" {
		store = &storage.DatabaseStore{}
	} else {
		store = &storage.MemoryStore{}
	}
	if err := store.Initialize(context.Background()); err != nil {
		return err
	}

	var (
		tracker *clicks.Tracker
		emitter *events.Emitter
	)
	if config.Current.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         config.Current.RedisAddr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		store = storage.NewCachedStore(store, storage.NewRedisCache(rdb), config.Current.CacheTTL())
		tracker = clicks.NewTracker(clicks.NewRedisDedup(rdb))
		emitter = events.NewEmitter(events.NewRedisPublisher(rdb))
	}

	var reputation policy.ReputationChecker
	if sb := policy.NewSafeBrowsing(config.Current.SafeBrowsingKey); sb != nil {
		reputation = sb
	}
	gate := policy.NewGate(config.Current.AllowedDomains(), config.Current.BlockedDomains(), reputation)

	sig := signer.New(config.Current.SigningSecret)
	if !sig.Enabled() {
		logger.Log.Warnw("no signing secret configured: /sign returns 503 and requireSignature links cannot be satisfied")
	}

	auth := middleware.NewAuth(config.Current.JWTSecret)
	h := handlers.New(store, sig, gate, tracker, emitter,
		geo.NewResolver(config.Current.GeoEndpoint), config.Current.BaseURL)

	return http.ListenAndServe(config.Current.ServerAddress, Router(h, auth))
}

func Router(h *handlers.Handler, auth *middleware.Auth) chi.Router {
	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Use(gzipMiddleware)
	r.Use(auth.Middleware)

	r.Get("/ping", h.Ping)

	r.Route("/urls", func(r chi.Router) {
		r.Post("/", h.CreateURL)
		r.Get("/", h.ListURLs)
		r.Post("/bulk", h.BulkCreateURLs)
		r.Put("/{id}", h.UpdateURL)
		r.Delete("/{id}", h.DeleteURL)
		r.Post("/{id}/sign", h.SignURL)
	})

	r.Route("/{slug}", func(r chi.Router) {
		r.Get("/", h.Redirect)
		r.Get("/qr", h.QRCode)
		r.Post("/unlock", h.Unlock)
	})
	return r
}
