package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdii/portal/core/dashboard"
	"github.com/mdii/portal/core/session"
	"github.com/mdii/portal/core/task"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type (
	dashboardService interface {
		Load(ctx context.Context, sess session.Session) (dashboard.Snapshot, error)
		Experts(ctx context.Context) (dashboard.ExpertList, error)
	}

	taskService interface {
		QueryAll(ctx context.Context, filter task.QueryFilter) ([]task.Task, error)
	}

	pinger interface {
		Ping(ctx context.Context, token string) error
	}
)

type commandLine struct {
	dashSvc dashboardService
	taskSvc taskService
	survey  pinger
	out     io.Writer

	// tokenConfigured is set when the survey platform token comes from the config.
	tokenConfigured bool
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "MDII portal administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	var viewer string
	var isAdmin bool
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Derive the tool statuses and print the dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.stats(cmd.Context(), session.Session{Email: viewer, IsAdmin: isAdmin || viewer == ""})
		},
	}
	statsCmd.Flags().StringVar(&viewer, "viewer", "", "coordinator email to scope the dashboard to (default: everything)")
	statsCmd.Flags().BoolVar(&isAdmin, "admin", false, "view as an admin even with --viewer")

	expertsCmd := &cobra.Command{
		Use:   "experts",
		Short: "Print the domain experts across both expert forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.experts(cmd.Context())
		},
	}

	var filter task.QueryFilter
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the follow-up tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Clean()
			return cli.tasks(cmd.Context(), filter)
		},
	}
	tasksCmd.Flags().StringVar(&filter.ToolID, "tool", "", "only the tasks of this tool")
	tasksCmd.Flags().StringVar(&filter.Status, "status", "", "only the tasks with this status (open, done)")

	var token string
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the survey platform accepts a token",
		Long: `Check that the survey platform accepts a token.
Without --token the configured server token is checked. When none is configured the token is prompted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" && !cli.tokenConfigured {
				fmt.Fprint(cli.out, "Enter token:")
				tok, err := readPasswordFunc(int(syscall.Stdin))
				fmt.Fprintln(cli.out)
				if err != nil {
					return err
				}
				if len(tok) == 0 {
					_ = cmd.Usage()
					return errHelp
				}
				token = string(tok)
			}
			return cli.ping(cmd.Context(), token)
		},
	}
	pingCmd.Flags().StringVar(&token, "token", "", "API token to check")

	root.AddCommand(statsCmd, expertsCmd, tasksCmd, pingCmd)
	return root
}

// run executes args (program name first).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) print(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
