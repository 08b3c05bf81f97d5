package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/mdii/portal/apps/api/echo"
	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/note"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/core/toolstatus"
	"github.com/mdii/portal/core/translation"
	logsvc "github.com/mdii/portal/services/logger"
	"github.com/mdii/portal/services/metrics"
	surveysvc "github.com/mdii/portal/services/survey"
	"github.com/mdii/portal/services/webhook"
	"github.com/mdii/portal/storage/blob"
	"github.com/mdii/portal/storage/csvdb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger, err := logsvc.New(conf)
	if err != nil {
		panic(fmt.Sprintf("setting up logger: %v", err))
	}
	defer logger.Sync()

	// set up blob storage
	store, err := blob.Open(context.Background(), conf.Blob)
	if err != nil {
		logger.Fatal("setting up blob storage", err, "backend", conf.Blob.Backend)
	}
	db := csvdb.Open(store, conf.Blob.Keys)

	// set up services
	m := metrics.New()
	surveyClient := surveysvc.NewClient(conf.Survey, nil, m)

	// coordinator lookups do not need the manual statuses
	resolver := dashboard.NewService(surveyClient, conf.Survey.Forms, nil, nil, logger)
	statusSvc := toolstatus.NewService(csvdb.NewToolStatusRepository(db), resolver)
	dashSvc := dashboard.NewService(surveyClient, conf.Survey.Forms, statusSvc, m, logger)

	flow := webhook.NewTranslationClient(conf.Webhook, &http.Client{Timeout: conf.Webhook.Timeout})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	if len(conf.Access.Admins)+len(conf.Access.Coordinators) == 0 {
		logger.Warn("no admin nor coordinator emails configured: nobody can log in")
	}
	if conf.Webhook.TranslationURL == "" {
		logger.Warn("translation webhook not configured")
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			SessionSvc:     session.NewService(conf.Access),
			DashboardSvc:   dashSvc,
			TaskSvc:        task.NewService(csvdb.NewTaskRepository(db)),
			NoteSvc:        note.NewService(csvdb.NewNoteRepository(db)),
			ToolStatusSvc:  statusSvc,
			TranslationSvc: translation.NewService(flow),
			Upstream:       surveyClient,
			Metrics:        m,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal("server error", err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err = server.Close(); err != nil {
				logger.Fatal("could not force stop server", err)
			}
		}
	}
}
