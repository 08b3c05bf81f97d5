package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/task"
	"github.com/mdii/portal/core/toolstatus"
	logsvc "github.com/mdii/portal/services/logger"
	surveysvc "github.com/mdii/portal/services/survey"
	"github.com/mdii/portal/storage/blob"
	"github.com/mdii/portal/storage/csvdb"
)

func main() {
	conf := core.NewConfig()

	logger, err := logsvc.New(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}

	store, err := blob.Open(context.Background(), conf.Blob)
	if err != nil {
		logger.Fatal("setting up blob storage", err, "backend", conf.Blob.Backend)
	}
	db := csvdb.Open(store, conf.Blob.Keys)

	surveyClient := surveysvc.NewClient(conf.Survey, nil, nil)
	resolver := dashboard.NewService(surveyClient, conf.Survey.Forms, nil, nil, logger)
	statusSvc := toolstatus.NewService(csvdb.NewToolStatusRepository(db), resolver)

	// start CLI
	cli := commandLine{
		dashSvc: dashboard.NewService(surveyClient, conf.Survey.Forms, statusSvc, nil, logger),
		taskSvc: task.NewService(csvdb.NewTaskRepository(db)),
		survey:  surveyClient,
		out:     os.Stdout,

		tokenConfigured: conf.Survey.Token != "",
	}
	err = cli.run(os.Args)
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
