package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
)

const maxActivities = 10

func (cli *commandLine) stats(ctx context.Context, sess session.Session) error {
	snap, err := cli.dashSvc.Load(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "loading dashboard")
	}
	if err := cli.print(snap.Stats); err != nil {
		return err
	}
	acts := snap.Activities
	if len(acts) > maxActivities {
		acts = acts[:maxActivities]
	}
	for _, a := range acts {
		date := "-"
		if !a.Date.IsZero() {
			date = a.Date.Format(time.RFC3339)
		}
		fmt.Fprintf(cli.out, "%s\t%s\t%s\t%s\t%s\n", date, a.ID, a.Tool, a.Status, a.Coordinator)
	}
	return nil
}

func (cli *commandLine) experts(ctx context.Context) error {
	list, err := cli.dashSvc.Experts(ctx)
	if err != nil {
		return errors.Wrap(err, "loading experts")
	}
	for _, d := range list.Degraded {
		fmt.Fprintf(cli.out, "warning: %s unavailable: %s\n", d.Slice, d.Error)
	}
	return cli.print(list.Experts)
}

func (cli *commandLine) tasks(ctx context.Context, filter task.QueryFilter) error {
	tasks, err := cli.taskSvc.QueryAll(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return cli.print(tasks)
}

func (cli *commandLine) ping(ctx context.Context, token string) error {
	if err := cli.survey.Ping(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "ok")
	return nil
}
