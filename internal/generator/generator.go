// Package generator runs the specimen jobs one after another: build the image,
// populate it inside a mount session, digest and record it.
package generator

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maxdollinger/specimen.io/internal/ledger"
	"github.com/maxdollinger/specimen.io/internal/matrix"
	"github.com/maxdollinger/specimen.io/internal/mount"
	"github.com/maxdollinger/specimen.io/internal/populate"
	"github.com/maxdollinger/specimen.io/internal/preflight"
	"github.com/maxdollinger/specimen.io/pkg/fs"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sys/unix"
)

const (
	ManifestFile = "manifest.txt"
	LedgerFile   = "catalog.db"
)

type Options struct {
	OutputDir string // must not exist yet
	MountDir  string // shared by every job
	Owner     mount.Owner
}

// Specimen is a finished image.
type Specimen struct {
	Job       matrix.Job
	Path      string
	SizeBytes int64
	Digest    digest.Digest
	Unicode   *populate.UnicodeReport
	BuildTime time.Duration
}

type Report struct {
	RunID     string
	Specimens []Specimen
}

type Generator struct {
	devices fs.BlockDeviceBuilder
	mounter mount.Mounter
	host    fs.Host
	runner  fs.Runner
	lookup  preflight.LookupFunc
	isRoot  bool
	logger  *slog.Logger
}

func New(devices fs.BlockDeviceBuilder, mounter mount.Mounter, host fs.Host, runner fs.Runner) *Generator {
	return &Generator{
		devices: devices,
		mounter: mounter,
		host:    host,
		runner:  runner,
		isRoot:  unix.Geteuid() == 0,
		logger:  slog.Default(),
	}
}

// WithLogger replaces the default logger.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

// WithLookup replaces the tool lookup used by the preflight check.
func (g *Generator) WithLookup(lookup preflight.LookupFunc) *Generator {
	g.lookup = lookup
	return g
}

// Run builds every job in order and stops at the first failure. Rejected
// Unicode names are reported, not failures.
func (g *Generator) Run(ctx context.Context, jobs []matrix.Job, opts Options) (report *Report, err error) {
	if err := preflight.Check(preflight.RequiredTools(jobs, g.isRoot), g.lookup); err != nil {
		return nil, err
	}
	if err := preflight.CheckFiles(preflight.RequiredFiles(jobs)); err != nil {
		return nil, err
	}

	if _, err := os.Lstat(opts.OutputDir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, opts.OutputDir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("check output directory: %w", err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ledgerDB, err := ledger.Open(ctx, filepath.Join(opts.OutputDir, LedgerFile))
	if err != nil {
		return nil, err
	}
	defer ledgerDB.Close()

	run, err := ledger.InsertRun(ctx, ledgerDB, len(jobs))
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, ledger.FinishRun(context.WithoutCancel(ctx), ledgerDB, run.ID, err))
	}()

	logger := g.logger.With("run", run.ID)
	logger.InfoContext(ctx, "run started", "jobs", len(jobs), "output", opts.OutputDir)

	report = &Report{RunID: run.ID}
	for i, job := range jobs {
		specimen, err := g.runJob(ctx, logger, ledgerDB, run.ID, i, job, opts)
		if err != nil {
			g.recordFailure(ctx, logger, ledgerDB, run.ID, i, job, opts, err)
			return report, err
		}
		report.Specimens = append(report.Specimens, *specimen)
	}

	if err := writeManifest(filepath.Join(opts.OutputDir, ManifestFile), report.Specimens); err != nil {
		return report, err
	}

	logger.InfoContext(ctx, "run finished", "specimens", len(report.Specimens))
	return report, nil
}

func (g *Generator) runJob(ctx context.Context, logger *slog.Logger, ledgerDB *sql.DB, runID string, position int, job matrix.Job, opts Options) (*Specimen, error) {
	start := time.Now()
	logger = logger.With("job", job.Name)
	logger.InfoContext(ctx, "job started", "kind", job.Kind, "size_bytes", job.SizeBytes)

	steps, unicodeReport, err := Plan(job)
	if err != nil {
		return nil, &JobError{Job: job.Name, Stage: StagePopulate, Err: err}
	}

	device, err := g.devices.NewDevice(ctx, fs.BlockDeviceOptions{
		OutputFilePath: filepath.Join(opts.OutputDir, job.FileName()),
		SizeBytes:      job.SizeBytes,
		SectorSize:     job.SectorSize,
		Kind:           string(job.Kind),
		BlockSize:      job.BlockSize,
		InodeSize:      job.InodeSize,
		InodeRatio:     job.InodeRatio,
		Features:       job.Features.Strings(),
		Label:          job.Label,
		UUID:           FsUUID(job),
	})
	if err != nil {
		return nil, &JobError{Job: job.Name, Stage: StageBuild, Err: err}
	}

	err = mount.With(ctx, g.mounter, opts.MountDir, device, opts.Owner, func(s *mount.Session) error {
		env := populate.NewEnv(s, g.host, g.runner).WithLogger(logger)
		return populate.Run(ctx, env, steps)
	})
	if err != nil {
		return nil, &JobError{Job: job.Name, Stage: sessionStage(err), Err: err}
	}

	dgst, size, err := digestFile(device.Path)
	if err != nil {
		return nil, &JobError{Job: job.Name, Stage: StageRecord, Err: err}
	}

	specimen := &Specimen{
		Job:       job,
		Path:      device.Path,
		SizeBytes: size,
		Digest:    dgst,
		Unicode:   unicodeReport,
		BuildTime: time.Since(start),
	}
	if err := record(ctx, ledgerDB, runID, position, device, specimen); err != nil {
		return nil, &JobError{Job: job.Name, Stage: StageRecord, Err: err}
	}

	attrs := []any{"digest", dgst.String(), "duration", specimen.BuildTime}
	if unicodeReport != nil {
		attrs = append(attrs, "unicode_created", unicodeReport.Created, "unicode_rejected", unicodeReport.Rejected)
	}
	logger.InfoContext(ctx, "job completed", attrs...)

	return specimen, nil
}

// sessionStage classifies an error returned by mount.With. A populate failure
// wins over an unmount failure joined to it.
func sessionStage(err error) Stage {
	var stepErr *populate.StepError
	switch {
	case errors.As(err, &stepErr):
		return StagePopulate
	case errors.Is(err, mount.ErrMountFailed), errors.Is(err, mount.ErrChownFailed):
		return StageMount
	case errors.Is(err, mount.ErrUnmountFailed):
		return StageUnmount
	default:
		return StagePopulate
	}
}

func record(ctx context.Context, ledgerDB *sql.DB, runID string, position int, device *fs.BlockDevice, s *Specimen) error {
	var attempts []populate.UnicodeAttempt
	if s.Unicode != nil {
		attempts = s.Unicode.Attempts
	}

	return ledger.RecordSpecimen(ctx, ledgerDB, &ledger.Specimen{
		RunID:     runID,
		Position:  position,
		Name:      s.Job.Name,
		Kind:      device.Kind,
		Path:      device.Path,
		FsUUID:    device.UUID.String(),
		SizeBytes: s.SizeBytes,
		Digest:    s.Digest,
		Status:    ledger.SpecimenBuilt,
	}, attempts)
}

// recordFailure notes the failed job in the ledger, replacing a row the job
// may already have. The job error is what the caller sees, a ledger error here
// is only logged.
func (g *Generator) recordFailure(ctx context.Context, logger *slog.Logger, ledgerDB *sql.DB, runID string, position int, job matrix.Job, opts Options, jobErr error) {
	msg := jobErr.Error()
	err := ledger.SaveFailedSpecimen(context.WithoutCancel(ctx), ledgerDB, &ledger.Specimen{
		RunID:    runID,
		Position: position,
		Name:     job.Name,
		Kind:     string(job.Kind),
		Path:     filepath.Join(opts.OutputDir, job.FileName()),
		FsUUID:   FsUUID(job).String(),
		Error:    &msg,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to record job failure", "job", job.Name, "err", err)
	}
}

func digestFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	dgst, err := digest.FromReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("digest image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat image: %w", err)
	}

	return dgst, info.Size(), nil
}

// writeManifest lists every image as "<file> <size> <digest>", in job order.
func writeManifest(path string, specimens []Specimen) error {
	var buf bytes.Buffer
	for _, s := range specimens {
		fmt.Fprintf(&buf, "%s %d %s\n", filepath.Base(s.Path), s.SizeBytes, s.Digest)
	}

	if err := fs.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}
