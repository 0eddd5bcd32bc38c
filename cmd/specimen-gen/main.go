package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/maxdollinger/specimen.io/internal/config"
	"github.com/maxdollinger/specimen.io/internal/generator"
	"github.com/maxdollinger/specimen.io/internal/matrix"
	"github.com/maxdollinger/specimen.io/internal/mount"
	"github.com/maxdollinger/specimen.io/internal/preflight"
	"github.com/maxdollinger/specimen.io/pkg/fs"
	"golang.org/x/sys/unix"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

const usage = `usage: specimen-gen <command> [flags]

commands:
  generate   build every specimen image into a fresh output directory
  list       print the specimen table
  tools      check the external tools a run needs
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	var cmdErr error
	switch args[0] {
	case "generate":
		cmdErr = generate(ctx, cfg, args[1:], stdout, stderr)
	case "list":
		cmdErr = list(cfg, args[1:], stdout, stderr)
	case "tools":
		cmdErr = tools(cfg, args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	switch {
	case cmdErr == nil:
		return exitOK
	case errors.Is(cmdErr, flag.ErrHelp):
		return exitOK
	case errors.Is(cmdErr, errUsage):
		fmt.Fprintln(stderr, cmdErr)
		return exitUsage
	default:
		fmt.Fprintln(stderr, cmdErr)
		return exitFatal
	}
}

// selectJobs expands the table and keeps only the named jobs when only is set.
func selectJobs(unicodeDB, only string) ([]matrix.Job, error) {
	jobs, err := matrix.Expand(matrix.Default(unicodeDB))
	if err != nil {
		return nil, err
	}
	if only == "" {
		return jobs, nil
	}

	byName := make(map[string]matrix.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = job
	}

	var selected []matrix.Job
	for _, name := range strings.Split(only, ",") {
		name = strings.TrimSpace(name)
		job, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown job %q", errUsage, name)
		}
		selected = append(selected, job)
	}
	return selected, nil
}

func parse(fset *flag.FlagSet, args []string) error {
	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fset.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fset.Arg(0))
	}
	return nil
}

func generate(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("generate", flag.ContinueOnError)
	fset.SetOutput(stderr)
	outputDir := fset.String("o", cfg.OutputDir, "output directory, must not exist")
	mountDir := fset.String("mnt", cfg.MountDir, "mount point shared by every job")
	unicodeDB := fset.String("unicode-db", cfg.UnicodeDB, "UnicodeData.txt for the unicode specimen")
	only := fset.String("only", "", "comma separated job names to build")
	verbose := fset.Bool("v", false, "debug logging")
	if err := parse(fset, args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	jobs, err := selectJobs(*unicodeDB, *only)
	if err != nil {
		return err
	}

	runner := fs.NewSudoRunner().WithLogger(logger)
	devices := fs.NewExtBuilder(fs.NewMkfsFormatter(runner, cfg.FakeTime)).WithLogger(logger)
	gen := generator.New(devices, mount.NewMounter(runner), fs.NewOSHost(runner), runner).WithLogger(logger)

	report, err := gen.Run(ctx, jobs, generator.Options{
		OutputDir: *outputDir,
		MountDir:  *mountDir,
		Owner:     mount.InvokingUser(),
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "corpus generated", "run", report.RunID, "specimens", len(report.Specimens), "output", *outputDir)
	return nil
}

func list(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	fset.SetOutput(stderr)
	unicodeDB := fset.String("unicode-db", cfg.UnicodeDB, "UnicodeData.txt for the unicode specimen")
	if err := parse(fset, args); err != nil {
		return err
	}

	jobs, err := selectJobs(*unicodeDB, "")
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tBLOCK\tSIZE\tFEATURES\tPOPULATORS")
	for _, job := range jobs {
		populators := make([]string, len(job.Populators))
		for i, p := range job.Populators {
			populators[i] = string(p)
		}
		features := strings.Join(job.Features.Strings(), ",")
		if features == "" {
			features = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			job.Name, job.Kind, job.BlockSize, job.SizeBytes, features, strings.Join(populators, ","))
	}
	return w.Flush()
}

func tools(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("tools", flag.ContinueOnError)
	fset.SetOutput(stderr)
	only := fset.String("only", "", "comma separated job names to check for")
	if err := parse(fset, args); err != nil {
		return err
	}

	jobs, err := selectJobs(cfg.UnicodeDB, *only)
	if err != nil {
		return err
	}

	var missing error
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, tool := range preflight.RequiredTools(jobs, unix.Geteuid() == 0) {
		path, err := exec.LookPath(tool)
		if err != nil {
			path = "missing"
			if missing == nil {
				missing = preflight.Check([]string{tool}, nil)
			}
		}
		fmt.Fprintf(w, "%s\t%s\n", tool, path)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return missing
}
