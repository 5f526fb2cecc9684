// Package api exposes the wishlist services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/metrics"
	"wishlist-bot/internal/query"
	"wishlist-bot/internal/utils"
	"wishlist-bot/internal/wish"
	"wishlist-bot/internal/wishlist"
)

type Handler struct {
	userSvc   *identity.Service
	listSvc   *wishlist.Service
	wishSvc   *wish.Service
	querySvc  *query.Service
	allowlist *utils.Allowlist
	loc       *time.Location
	log       logrus.FieldLogger
}

type Deps struct {
	Users     *identity.Service
	Wishlists *wishlist.Service
	Wishes    *wish.Service
	Query     *query.Service
	Allowlist *utils.Allowlist
	Location  *time.Location
	Log       logrus.FieldLogger
}

func NewHandler(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	allow := d.Allowlist
	if allow == nil {
		allow = &utils.Allowlist{}
	}
	return &Handler{
		userSvc:   d.Users,
		listSvc:   d.Wishlists,
		wishSvc:   d.Wishes,
		querySvc:  d.Query,
		allowlist: allow,
		loc:       loc,
		log:       d.Log.WithField("component", "api"),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(utils.KeepPeerAddr)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(requestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.allowlist.Middleware)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Post("/register-or-get", h.registerOrGet)
			r.Get("/by_telegram_id", h.userByTelegramID)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getUser)
				r.Patch("/", h.updateUser)
				r.Delete("/", h.deleteUser)
				r.Post("/subscribe", h.subscribe)
				r.Post("/unsubscribe", h.unsubscribe)
				r.Get("/subscriptions", h.subscriptions)
				r.Get("/subscribers", h.subscribers)
				r.Get("/invitees", h.invitees)
			})
		})

		r.Route("/wishlists", func(r chi.Router) {
			r.Get("/", h.listWishlists)
			r.Post("/", h.createWishlist)
			r.Get("/by_telegram_id", h.wishlistsByTelegramID)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getWishlist)
				r.Patch("/", h.updateWishlist)
				r.Delete("/", h.deleteWishlist)
			})
		})

		r.Route("/wishes", func(r chi.Router) {
			r.Get("/", h.listWishes)
			r.Post("/", h.createWish)
			r.Get("/by_telegram_id", h.wishesByTelegramID)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getWish)
				r.Patch("/", h.updateWish)
				r.Delete("/", h.deleteWish)
				r.Post("/fulfill", h.fulfillWish)
				r.Delete("/fulfill", h.unfulfillWish)
				r.Post("/reserve", h.reserveWish)
				r.Post("/move", h.moveWish)
			})
		})
	})

	return r
}

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.log.WithFields(logrus.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   utils.RemoteIP(r),
		}).Info("http request")
	})
}
