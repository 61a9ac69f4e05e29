package api

import (
	"context"
	"log/slog"
	"net/http"

	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// AlarmService is the alarm scheduler surface used by handlers.
type AlarmService interface {
	Add(ctx context.Context, name, at, sound string) (domain.Alarm, error)
	Remove(ctx context.Context, id int64) bool
	List() []domain.Alarm
	TimeRemaining(tod domain.TimeOfDay) string
}

// TimerService is the timer scheduler surface used by handlers.
type TimerService interface {
	Create(ctx context.Context, settings domain.TimerSettings) (domain.Timer, error)
	Edit(ctx context.Context, id int64, settings domain.TimerSettings) (domain.Timer, error)
	Start(ctx context.Context, id int64) error
	Pause(ctx context.Context, id int64) error
	Reset(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	List() []domain.Timer
	Active() (domain.Timer, bool)
}

// NotificationService is the notification queue surface used by handlers.
type NotificationService interface {
	Pending() []domain.Notification
	Current() (domain.Notification, bool)
	Acknowledge(id string, choice domain.Choice) error
	Dismiss(id string) error
}

// Options configures router paths and limits.
// Params: probe/metrics paths, readiness func, CORS origins, and request body limit.
// Returns: router setup input.
type Options struct {
	HealthPath   string
	ReadyPath    string
	Ready        func() bool
	MetricsPath  string
	AllowOrigins []string
	MaxBodyBytes int64
}

// Deps bundles handler collaborators.
type Deps struct {
	Alarms        AlarmService
	Timers        TimerService
	Notifications NotificationService
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

type handlers struct {
	alarms        AlarmService
	timers        TimerService
	notifications NotificationService
	logger        *slog.Logger
	maxBody       int64
}

// NewRouter builds presentation API router.
// Params: scheduler services, metrics, logger, and options.
// Returns: HTTP handler with middleware chain applied.
func NewRouter(deps Deps, opts Options) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/healthz"
	}
	if opts.ReadyPath == "" {
		opts.ReadyPath = "/readyz"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}

	h := &handlers{
		alarms:        deps.Alarms,
		timers:        deps.Timers,
		notifications: deps.Notifications,
		logger:        logger,
		maxBody:       opts.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	r.Get(opts.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get(opts.ReadyPath, func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle(opts.MetricsPath, deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sounds", h.listSounds)

		r.Route("/alarms", func(r chi.Router) {
			r.Get("/", h.listAlarms)
			r.Post("/", h.createAlarm)
			r.Delete("/{id}", h.deleteAlarm)
		})

		r.Route("/timers", func(r chi.Router) {
			r.Get("/", h.listTimers)
			r.Post("/", h.createTimer)
			r.Put("/{id}", h.editTimer)
			r.Delete("/{id}", h.deleteTimer)
			r.Post("/{id}/{action}", h.timerAction)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Post("/{id}/ack", h.acknowledge)
			r.Post("/{id}/dismiss", h.dismiss)
		})
	})
	return r
}
