// Command chainrun runs chain scripts and reports the outcome.
//
//	chainrun [FLAGS] FILE|DIR ...
//
// Every flag can also be set through a CHAINRUN_ environment variable,
// e.g. CHAINRUN_TIMEOUT=10s.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/kuitang/chaincmds/internal/config"
	"github.com/kuitang/chaincmds/internal/dom/pwdom"
	"github.com/kuitang/chaincmds/internal/errs"
	"github.com/kuitang/chaincmds/internal/obs"
	"github.com/kuitang/chaincmds/internal/options"
	"github.com/kuitang/chaincmds/internal/report"
	"github.com/kuitang/chaincmds/internal/s3client"
	"github.com/kuitang/chaincmds/internal/script"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs.Init()
	cmd := NewCommand(os.Stdout)
	err := cmd.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("CHAINRUN"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd))
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(errs.ExitCode(errs.CodeOf(err)))
	}
}

// NewCommand creates the root ff.Command. The run summary goes to stdout.
func NewCommand(stdout io.Writer) *ff.Command {
	cfg := config.LoadConfig()

	fs := ff.NewFlagSet("chainrun")
	cfg.RegisterFlags(fs)

	return &ff.Command{
		Name:  "chainrun",
		Usage: "chainrun [FLAGS] FILE|DIR ...",
		Flags: fs,
		Exec: func(ctx context.Context, args []string) error {
			return execRun(ctx, cfg, args, stdout)
		},
	}
}

func execRun(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errs.New(errs.InvalidArgument, "at least one script file or directory required")
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(errs.Configuration, "", err)
	}
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	var files []string
	for _, arg := range args {
		found, err := script.Glob(arg)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("cannot access %s", arg), err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return errs.New(errs.InvalidArgument, "no "+script.Ext+" scripts found")
	}

	params := script.Params{
		Timeout:        cfg.Timeout,
		RetryInterval:  cfg.RetryInterval,
		RequestBaseURL: cfg.RequestBaseURL,
	}
	if cfg.Browser {
		browser, err := pwdom.Launch(pwdom.Options{
			BaseURL:  cfg.BaseURL,
			Headless: options.Bool(!cfg.Headed),
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return errs.Wrap(errs.Internal, "launch browser", err)
		}
		defer func() {
			if err := browser.Close(); err != nil {
				obs.From(ctx).Warn("browser_close_failed", "error", err)
			}
		}()
		params.Visitor = browser
	}

	run := &report.Run{ID: obs.NewRunID(), Started: time.Now()}
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: run.ID})
	log := obs.From(ctx)
	log.Info("run_started", "scripts", len(files), "browser", cfg.Browser)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Internal, "run interrupted", err)
		}
		run.Files = append(run.Files, script.RunFile(ctx, file, params))
	}
	run.Finished = time.Now()
	printSummary(stdout, run)

	formats := cfg.Formats()
	if cfg.ReportDir != "" {
		paths, err := writeReports(cfg.ReportDir, run, formats)
		if err != nil {
			return errs.Wrap(errs.Internal, "write reports", err)
		}
		for _, p := range paths {
			fmt.Fprintf(stdout, "report: %s\n", p)
		}
	}
	if cfg.Publish {
		client, err := s3client.New(ctx, cfg.StorageConfig())
		if err != nil {
			return errs.Wrap(errs.Internal, "connect to report storage", err)
		}
		urls, err := report.Publish(ctx, client, cfg.ReportPrefix, run, formats...)
		if err != nil {
			return errs.Wrap(errs.Internal, "publish reports", err)
		}
		for _, u := range urls {
			fmt.Fprintf(stdout, "published: %s\n", u)
		}
	}

	passed, failed := run.Counts()
	log.Info("run_finished", "passed", passed, "failed", failed,
		"duration_ms", run.Finished.Sub(run.Started).Milliseconds())
	if failed > 0 {
		return errs.New(errs.Assertion, fmt.Sprintf("%d of %d chains failed", failed, passed+failed))
	}
	return nil
}

func printSummary(w io.Writer, run *report.Run) {
	for _, f := range run.Files {
		if f.Err != "" {
			fmt.Fprintf(w, "FAIL %s\n  %s\n", f.Name, f.Err)
			continue
		}
		status := "ok  "
		if !f.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (%d chains)\n", status, f.Name, len(f.Chains))
		for _, c := range f.Chains {
			if !c.Passed {
				fmt.Fprintf(w, "  line %d: %s\n    %s\n", c.Line, c.Source, c.Error)
			}
		}
	}
	passed, failed := run.Counts()
	fmt.Fprintf(w, "%d passed, %d failed in %s\n", passed, failed,
		run.Finished.Sub(run.Started).Round(time.Millisecond))
}

// writeReports renders run in each format into dir/<run id>/.
func writeReports(dir string, run *report.Run, formats []report.Format) ([]string, error) {
	out := filepath.Join(dir, run.ID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		body, err := run.Render(f)
		if err != nil {
			return paths, err
		}
		p := filepath.Join(out, "report."+f.Ext())
		if err := os.WriteFile(p, body, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
