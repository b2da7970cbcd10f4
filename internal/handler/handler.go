package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/auth"
	"github.com/iurnickita/abetos/internal/handler/config"
	"github.com/iurnickita/abetos/internal/handler/render"
	"github.com/iurnickita/abetos/internal/logger"
	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/service"
)

// Serve обслуживает API до отмены ctx, затем останавливает сервер.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, zaplog)
	router := h.newRouter(cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zaplog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
	now     func() time.Time
}

func newHandler(auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &handler{
		auth:    auth,
		service: service,
		zaplog:  zaplog,
		now:     time.Now,
	}
}

func (h *handler) newRouter(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(logger.RequestLogMdlw(h.zaplog))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logger.HeaderRequestID},
			ExposedHeaders:   []string{logger.HeaderRequestID},
			AllowCredentials: true,
		}))
	}

	staff := h.auth.Middleware(model.RoleAdmin, model.RoleClerk)
	admin := h.auth.Middleware(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/rewards", h.ListRewards)

		r.Post("/auth/register", h.auth.Register)
		r.Post("/auth/login", h.auth.Login)
		r.With(h.auth.Middleware()).Get("/auth/me", h.auth.Me)

		// Клиент
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware())
			r.Get("/me", h.GetProfile)
			r.Get("/me/balance", h.GetBalance)
			r.Get("/me/transactions", h.GetTransactions)
			r.Post("/me/redeem/{rewardID}", h.PostRedeem)
		})

		// Персонал
		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Post("/purchases", h.PostPurchase)
			r.Post("/admin/accredit-by-dni", h.PostAccreditByDocument)
			r.Get("/admin/customers/{doc}", h.GetCustomerByDocument)
		})

		// Администратор
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/rules", h.ListRules)
			r.Post("/rules/seed", h.PostSeedRules)
			r.Post("/rewards/seed", h.PostSeedRewards)
			r.Post("/admin/member-numbers/repair", h.PostRepairMemberNumbers)
		})
	})

	return r
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ok"})
}
