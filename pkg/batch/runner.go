package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfredact-golang/pkg/redact"
	"github.com/pyhub-apps/pdfredact-golang/pkg/verify"
)

// Status is the outcome of processing one document
type Status int

const (
	StatusClean    Status = iota // no occurrence, nothing written
	StatusRedacted               // occurrences removed, copy written
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusRedacted:
		return "redacted"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result describes one processed document
type Result struct {
	Path    string
	Output  string // empty unless redacted
	Status  Status
	Matches int
	Pages   int
	Stats   redact.Stats
	Leaks   []verify.Leak
	Err     error
}

// Summary counts the results of a run
type Summary struct {
	Scanned  int
	Redacted int
	Clean    int
	Failed   int
	Leaks    int
}

// Summarize counts results
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Scanned++
		s.Leaks += len(r.Leaks)
		switch r.Status {
		case StatusRedacted:
			s.Redacted++
		case StatusClean:
			s.Clean++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Options configures a Runner
type Options struct {
	Target        string
	OutDir        string
	Workers       int
	PageWorkers   int
	ProgressEvery int
	FillColor     pdf.Color
	Verify        bool
	Logger        *slog.Logger
}

// Runner redacts a set of documents with a bounded number of workers
type Runner struct {
	opts    Options
	logger  *slog.Logger
	scanned atomic.Int64
	written atomic.Int64

	open func(data []byte) (*pdf.PDFDocument, error)
}

// NewRunner creates a runner
func NewRunner(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PageWorkers < 1 {
		opts.PageWorkers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{opts: opts, logger: logger, open: openDocument}
}

// Run processes files and returns one result per file in the same order.
// A failing document does not stop the others; once ctx is done the
// remaining documents are reported as failed without being opened.
func (r *Runner) Run(ctx context.Context, files []string) []Result {
	results := make([]Result, len(files))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			results[i] = r.Process(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	s := Summarize(results)
	r.logger.Info("Run finished.", "scanned", s.Scanned, "redacted", s.Redacted, "clean", s.Clean, "failed", s.Failed)
	return results
}

// Process redacts one document and writes the copy when anything was found
func (r *Runner) Process(ctx context.Context, path string) Result {
	res := Result{Path: path}
	logCtx := r.logger.With("file", path)

	if err := ctx.Err(); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	logCtx.Debug("Checking if file needs redaction.")
	defer r.progress(&res)

	if err := r.process(ctx, logCtx, &res); err != nil {
		logCtx.Error("Failed to redact file.", "error", err)
		res.Status = StatusFailed
		res.Err = err
	}
	return res
}

func openDocument(data []byte) (*pdf.PDFDocument, error) {
	return pdf.OpenBytes(data, nil)
}

// process recovers panics of the PDF libraries so that one corrupt file
// only fails itself
func (r *Runner) process(ctx context.Context, logCtx *slog.Logger, res *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing %s: %v", res.Path, p)
		}
	}()

	data, err := os.ReadFile(res.Path)
	if err != nil {
		return &IOError{Op: "read", Path: res.Path, Err: err}
	}

	doc, err := r.open(data)
	if err != nil {
		return err
	}

	outcome, err := redact.Redact(ctx, doc, r.opts.Target,
		redact.WithPageWorkers(r.opts.PageWorkers),
		redact.WithLogger(logCtx),
		redact.WithApplierOptions(redact.WithFillColor(r.opts.FillColor)),
	)
	if err != nil {
		return err
	}
	res.Pages = outcome.Pages
	res.Matches = len(outcome.Matches)
	res.Stats = outcome.Stats

	if !outcome.Redacted() {
		res.Status = StatusClean
		return nil
	}

	logCtx.Info("Executing redaction.", "matches", res.Matches, "pages", len(outcome.Plan.Pages()))
	out, err := doc.Bytes()
	if err != nil {
		return err
	}

	if r.opts.Verify {
		report, err := verify.Verify(out, outcome.Plan)
		switch {
		case err != nil:
			logCtx.Warn("Could not verify redacted file.", "error", err)
		case !report.Clean():
			res.Leaks = report.Leaks
			logCtx.Warn("Text remains inside redacted areas.", "leaks", len(report.Leaks), "reader", report.Reader)
		}
	}

	dest := OutputPath(r.opts.OutDir, res.Path)
	if err := writeFile(dest, out); err != nil {
		return err
	}

	res.Output = dest
	res.Status = StatusRedacted
	logCtx.Info("Done, saved redacted file.", "output", dest)
	return nil
}

func (r *Runner) progress(res *Result) {
	every := int64(r.opts.ProgressEvery)
	if every <= 0 {
		return
	}
	if n := r.scanned.Add(1); n%every == 0 {
		r.logger.Info("Progress.", "searched", n)
	}
	if res.Status == StatusRedacted {
		if n := r.written.Add(1); n%every == 0 {
			r.logger.Info("Progress.", "redacted", n)
		}
	}
}

// writeFile writes data next to dest and renames it into place, so dest
// never holds a partial file
func writeFile(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".pdfredact-*.tmp")
	if err != nil {
		return &IOError{Op: "create temporary file in", Path: dir, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return &IOError{Op: "chmod", Path: tmp.Name(), Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &IOError{Op: "rename", Path: dest, Err: err}
	}
	return nil
}
