package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/middleware/ratelimit"
	"costmanager/internal/middleware/security"
	"costmanager/internal/middleware/trace"
	"costmanager/internal/report"
	"costmanager/internal/store"
)

// Service names one of the HTTP services. Each binary serves exactly one.
type Service string

const (
	ServiceCosts Service = "costs"
	ServiceUsers Service = "users"
	ServiceLogs  Service = "logs"
	ServiceAdmin Service = "admin"
)

// ParseService maps a service name to a Service.
func ParseService(s string) (Service, error) {
	switch svc := Service(strings.ToLower(strings.TrimSpace(s))); svc {
	case ServiceCosts, ServiceUsers, ServiceLogs, ServiceAdmin:
		return svc, nil
	}
	return "", fmt.Errorf("unknown service %q", s)
}

// DisplayName is the name used in request logs and the UP banner.
func (s Service) DisplayName() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

type (
	ReportGetter interface {
		GetMonthlyReport(ctx context.Context, userID int64, year, month int) (report.Result, error)
	}

	CostAdder interface {
		AddCost(ctx context.Context, c core.Cost) (core.Cost, error)
	}

	UserManager interface {
		AddUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.UserSummary, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	LogLister interface {
		ListLogs(ctx context.Context) ([]core.LogEntry, error)
	}
)

// Deps are the collaborators a Server routes to. Only those of the served
// Service are required.
type Deps struct {
	Reports ReportGetter
	Costs   CostAdder
	Users   UserManager
	Logs    LogLister
	Team    []core.TeamMember

	// Recorder receives one entry per request; nil disables request logs.
	Recorder log.RequestRecorder
	// Ready is pinged by /readyz when set.
	Ready store.Pinger
	// Location is the calendar for timestamps without a zone.
	Location  *time.Location
	RateLimit ratelimit.Config
	Logger    *log.Logger
}

type Server struct {
	http.Server
	service Service
	deps    Deps
	logger  *log.Logger

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures the routes of service, returning a ready-to-run server.
func NewServer(addr string, service Service, deps Deps) (*Server, error) {
	if err := deps.validate(service); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		service:  service,
		deps:     deps,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /{$}", s.handleRoot)
	switch service {
	case ServiceCosts:
		api.HandleFunc("GET /api/report", s.handleReport)
		api.HandleFunc("POST /api/add", s.handleAddCost)
	case ServiceUsers:
		api.HandleFunc("POST /api/add", s.handleAddUser)
		api.HandleFunc("GET /api/users", s.handleListUsers)
		api.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	case ServiceLogs:
		api.HandleFunc("GET /api/logs", s.handleListLogs)
	case ServiceAdmin:
		api.HandleFunc("GET /api/about", s.handleAbout)
	}

	var handler http.Handler = api
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}, http.MethodPost)(handler)
	handler = log.RequestLogMiddleware(service.DisplayName(), deps.Recorder, deps.Logger)(handler)

	// Probes stay out of the request log and the limiter.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", handler)

	var outer http.Handler = root
	outer = s.detector.Middleware(outer)
	outer = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(outer)
	outer = s.tracer.Middleware(outer)
	s.Handler = outer

	return s, nil
}

func (d Deps) validate(service Service) error {
	var missing []string
	switch service {
	case ServiceCosts:
		if d.Reports == nil {
			missing = append(missing, "report engine")
		}
		if d.Costs == nil {
			missing = append(missing, "cost service")
		}
	case ServiceUsers:
		if d.Users == nil {
			missing = append(missing, "user service")
		}
	case ServiceLogs:
		if d.Logs == nil {
			missing = append(missing, "log service")
		}
	case ServiceAdmin:
	default:
		return fmt.Errorf("unknown service %q", service)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s service is missing: %s", service, strings.Join(missing, ", "))
	}
	return nil
}

// Service returns the service this server routes.
func (s *Server) Service() Service { return s.service }

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		metrics := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopped",
			"requests", metrics.TotalRequests,
			"server_errors", metrics.ServerErrors,
			"rate_limited", s.limiter.GetMetrics().TotalHits,
			"suspicious", s.detector.GetMetrics().SuspiciousRequests)
	})
	return shutdownErr
}
