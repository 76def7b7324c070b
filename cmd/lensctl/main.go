package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lensworks/lensworks/cmd/lensctl/cli"
	"github.com/lensworks/lensworks/internal/app"
)

const usage = `usage: lensctl <command> [flags]

commands:
  queue              print default queue statistics
  archived [-n N]    list archived status change tasks
  rerun <task-id>    move an archived task back to pending
`

type command struct {
	name  string
	size  int
	taskID string
}

func parseArgs(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("command required")
	}
	cmd := command{name: args[0]}
	switch cmd.name {
	case "queue":
		if len(args) > 1 {
			return command{}, fmt.Errorf("queue takes no arguments")
		}
	case "archived":
		fs := flag.NewFlagSet("archived", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.IntVar(&cmd.size, "n", 20, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return command{}, err
		}
	case "rerun":
		if len(args) != 2 || args[1] == "" {
			return command{}, errors.New("rerun requires a task id")
		}
		cmd.taskID = args[1]
	default:
		return command{}, fmt.Errorf("unknown command %q", cmd.name)
	}
	return cmd, nil
}

func run(ctx context.Context, c *cli.JobsCLI, cmd command, out io.Writer) error {
	switch cmd.name {
	case "queue":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "archived":
		tasks, err := c.ListArchived(ctx, cmd.size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "%s\t%s\t%s\n", t.ID, t.LastErr, t.Payload)
		}
	case "rerun":
		if err := c.RunArchived(ctx, cmd.taskID); err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %s\n", cmd.taskID)
	}
	return nil
}

func main() {
	cmd, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer jobsCLI.Close()

	if err := run(ctx, jobsCLI, cmd, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
