package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"cashboxes/internal/auth"
	"cashboxes/internal/files"
	applog "cashboxes/internal/log"
	"cashboxes/internal/middleware/ratelimit"
	"cashboxes/internal/middleware/security"
	"cashboxes/internal/middleware/trace"
	"cashboxes/internal/ports"
	"cashboxes/internal/services"
	appweb "cashboxes/web"
)

// Options tune the HTTP layer. Zero values fall back to defaults.
type Options struct {
	Realm          string
	MaxUploadBytes int64
	RateLimitRPM   int
	TrustedProxies []string
}

// Dependencies are the services the handlers compose.
type Dependencies struct {
	Store     ports.Store
	Ledger    *services.Ledger
	Invoices  *services.InvoiceService
	Documents *files.Store
	Auth      *auth.Authenticator
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	logger    *applog.Logger
	templates map[string]*template.Template

	store    ports.Store
	ledger   *services.Ledger
	invoices *services.InvoiceService
	docs     *files.Store
	auth     *auth.Authenticator

	realm          string
	maxUploadBytes int64

	clientIP    *security.ClientIP
	trace       *trace.Middleware
	submitLimit *ratelimit.Limiter
	authLimit   *ratelimit.Limiter
	started     time.Time
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts Options) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	if opts.Realm == "" {
		opts.Realm = "cashboxes"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.RateLimitRPM <= 0 {
		opts.RateLimitRPM = 30
	}

	clientIP, err := security.NewClientIP(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	templates, err := loadTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:         logger,
		templates:      templates,
		store:          deps.Store,
		ledger:         deps.Ledger,
		invoices:       deps.Invoices,
		docs:           deps.Documents,
		auth:           deps.Auth,
		realm:          opts.Realm,
		maxUploadBytes: opts.MaxUploadBytes,
		clientIP:       clientIP,
		trace:          trace.NewMiddleware(logger, clientIP.Extract),
		submitLimit:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		authLimit:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 10}),
		started:        time.Now(),
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limitSubmit := s.submitLimit.Middleware(s.clientIP.Extract, nil, http.MethodPost)

	mux.Handle("GET /{$}", s.requireUser(s.handleOverview))
	mux.Handle("GET /box/{$}", s.requireUser(s.handleCashBoxes))
	mux.Handle("GET /box/{name}/{$}", s.requireUser(s.handleInvoices))
	mux.Handle("GET /box/{name}/transactions", s.requireUser(s.handleOwnTransactions))
	mux.Handle("GET /box/{name}/transactions/{user}", s.requireUser(s.handleUserTransactions))
	mux.Handle("GET /box/{name}/new", s.requireUser(s.handleSubmitForm))
	mux.Handle("POST /box/{name}/new", limitSubmit(s.requireUser(s.handleSubmitInvoice)))
	mux.Handle("GET /users", s.requireUser(s.handleUsers))
	mux.Handle("GET /files/{file}", s.requireUser(s.handleDocument))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:           addr,
		Handler:        s.trace.Middleware(headers.Middleware(mux)),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s, nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	go func() { _ = s.submitLimit.Run(ctx) }()
	go func() { _ = s.authLimit.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
