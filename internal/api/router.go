package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/api/handlers"
	"github.com/relayworks/server/internal/api/middleware"
	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/config"
	"github.com/relayworks/server/internal/domain/channels"
	"github.com/relayworks/server/internal/domain/notifications"
	"github.com/relayworks/server/internal/domain/projects"
	"github.com/relayworks/server/internal/domain/tasks"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/metrics"
	"github.com/relayworks/server/internal/realtime"
	"github.com/relayworks/server/internal/tenant"
)

// Deps carries the composed services into the router. Construction
// happens in the serve command, not here, so the realtime broadcaster and
// job client can share the same instances.
type Deps struct {
	Pool          *pgxpool.Pool
	Redis         *redis.Client
	Authority     *auth.Authority
	Users         *users.Service
	Tenants       *tenants.Service
	Projects      *projects.Service
	Channels      *channels.Service
	Tasks         *tasks.Service
	Notifications notifications.Repository
	Gateway       http.Handler
	Version       string
}

func NewRouter(cfg config.Config, logger zerolog.Logger, d Deps) http.Handler {
	env := cfg.Environment

	authHandler := handlers.NewAuthHandler(d.Users, d.Authority, env, cfg.Auth.RefreshTTL)
	projectsHandler := handlers.NewProjectsHandler(d.Projects, env)
	channelsHandler := handlers.NewChannelsHandler(d.Channels, env)
	tasksHandler := handlers.NewTasksHandler(d.Tasks, env)
	notificationsHandler := handlers.NewNotificationsHandler(d.Notifications, env)
	membersHandler := handlers.NewMembersHandler(d.Tenants, env)
	healthChecker := handlers.NewHealthChecker(d.Pool, d.Redis, d.Version)

	requireAuth := middleware.RequireAuth(d.Authority, env)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz())
	mux.Handle("/health", healthChecker.Health())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if d.Gateway != nil {
		mux.Handle("/ws", d.Gateway)
	}

	route := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, metrics.HTTPMiddleware(pattern, handler))
	}

	route("/api/v1/auth/signup", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Signup),
	}))
	route("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Login),
	}))
	route("/api/v1/auth/refresh", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Refresh),
	}))
	route("/api/v1/auth/logout", requireAuth(methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Logout),
	})))
	route("/api/v1/auth/verify-email", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(authHandler.VerifyEmail),
	}))

	route("/api/v1/projects", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(projectsHandler.List),
		http.MethodPost: http.HandlerFunc(projectsHandler.Create),
	})))
	route("/api/v1/projects/{id}", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(projectsHandler.Get),
		http.MethodPatch:  http.HandlerFunc(projectsHandler.Update),
		http.MethodDelete: http.HandlerFunc(projectsHandler.Delete),
	})))
	route("/api/v1/projects/{id}/tasks", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(tasksHandler.ListByProject),
		http.MethodPost: http.HandlerFunc(tasksHandler.Create),
	})))

	route("/api/v1/tasks/{id}", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(tasksHandler.Get),
	})))
	route("/api/v1/tasks/{id}/status", requireAuth(methodMux(map[string]http.Handler{
		http.MethodPatch: http.HandlerFunc(tasksHandler.UpdateStatus),
	})))
	route("/api/v1/tasks/{id}/assignees", requireAuth(methodMux(map[string]http.Handler{
		http.MethodPost:   http.HandlerFunc(tasksHandler.Assign),
		http.MethodDelete: http.HandlerFunc(tasksHandler.Unassign),
	})))

	route("/api/v1/channels", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(channelsHandler.List),
		http.MethodPost: http.HandlerFunc(channelsHandler.Create),
	})))
	route("/api/v1/channels/{id}", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(channelsHandler.Get),
	})))
	route("/api/v1/channels/{id}/messages", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(channelsHandler.ListMessages),
		http.MethodPost: http.HandlerFunc(channelsHandler.PostMessage),
	})))

	route("/api/v1/notifications", requireAuth(methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(notificationsHandler.List),
	})))
	route("/api/v1/notifications/{id}/read", requireAuth(methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(notificationsHandler.MarkRead),
	})))

	route("/api/v1/tenant/members", requireAuth(methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(membersHandler.Add),
	})))
	route("/api/v1/tenant/members/{id}", requireAuth(methodMux(map[string]http.Handler{
		http.MethodDelete: http.HandlerFunc(membersHandler.Remove),
	})))

	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

// RoomAuthorizer re-verifies room join targets against the tenant-scoped
// repositories. The lookup runs under the connection's scope, so a target
// in another tenant comes back ErrNotFound and maps to ErrRoomNotFound.
type RoomAuthorizer struct {
	Projects *projects.Service
	Channels *channels.Service
}

func (a RoomAuthorizer) AuthorizeProject(ctx context.Context, scope tenant.Scope, projectID string) error {
	ctx = tenant.WithScope(ctx, scope)
	if _, err := a.Projects.Get(ctx, projectID); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return realtime.ErrRoomNotFound
		}
		return err
	}
	return nil
}

func (a RoomAuthorizer) AuthorizeChannel(ctx context.Context, scope tenant.Scope, channelID string) error {
	ctx = tenant.WithScope(ctx, scope)
	if _, err := a.Channels.Get(ctx, channelID); err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			return realtime.ErrRoomNotFound
		}
		return err
	}
	return nil
}

var _ realtime.RoomAuthorizer = RoomAuthorizer{}
