package echoapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/note"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/core/toolstatus"
	"github.com/mdii/portal/core/translation"
)

type (
	// Upstream forwards requests to the survey platform.
	Upstream interface {
		Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType string) (*http.Response, error)
	}

	// Metrics is what the server reports to and exposes.
	Metrics interface {
		ObserveProxy(method string, status int)
		Handler() http.Handler
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		SessionSvc     *session.Service
		DashboardSvc   *dashboard.Service
		TaskSvc        *task.Service
		NoteSvc        *note.Service
		ToolStatusSvc  *toolstatus.Service
		TranslationSvc *translation.Service
		Upstream       Upstream
		Metrics        Metrics
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *Auth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     NewAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.CORSOrigins}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", health)
	if s.deps.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	jwt := s.auth.Middleware()
	v1 := s.app.Group("/v1")

	registerSessionAPI(v1, jwt, s.auth, s.deps.SessionSvc, s.deps.Validate)
	registerDashboardAPI(v1, jwt, s.deps.DashboardSvc)
	registerTaskAPI(v1, jwt, s.deps.TaskSvc, s.deps.Validate)
	registerNoteAPI(v1, jwt, s.deps.NoteSvc, s.deps.Validate)
	registerToolStatusAPI(v1, jwt, s.deps.ToolStatusSvc, s.deps.Validate)
	registerTranslationAPI(v1, jwt, s.deps.TranslationSvc, s.deps.Validate, s.deps.Logger)
	registerProxy(s.app.Group("/api/kobo", jwt), s.deps.Upstream, s.deps.Metrics)
}

// Start listens on the configured address. Listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
