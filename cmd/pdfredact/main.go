package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/pyhub-apps/pdfredact-golang/pkg/batch"
	"github.com/pyhub-apps/pdfredact-golang/pkg/config"
)

// Exit codes
const (
	exitOK     = 0
	exitUsage  = 1
	exitFailed = 2
)

const usage = "Usage: pdfredact [flags] <in_folder> <out_folder> <text> [filename_regex]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	in, out, text string
	filter        *regexp.Regexp
	cfg           *config.Config
	verbose       bool
	noColor       bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
			fmt.Fprintln(stderr, usage)
		}
		return exitUsage
	}

	level, _ := config.ParseLevel(opts.cfg.Logging.Level)
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	logger.Info("Starting.",
		"input", opts.in,
		"output", opts.out,
		"text", opts.text,
		"regex", filterString(opts.filter),
		"workers", opts.cfg.Processing.Workers)

	files, err := batch.Walk(opts.in, opts.filter, opts.out)
	if err != nil {
		logger.Error("Failed to list input files.", "error", err)
		return exitFailed
	}

	runner := batch.NewRunner(batch.Options{
		Target:        opts.text,
		OutDir:        opts.out,
		Workers:       opts.cfg.Processing.Workers,
		PageWorkers:   opts.cfg.Processing.PageWorkers,
		ProgressEvery: opts.cfg.Processing.ProgressEvery,
		FillColor:     opts.cfg.FillColor(),
		Verify:        opts.cfg.Redaction.Verify,
		Logger:        logger,
	})
	results := runner.Run(ctx, files)
	summary := batch.Summarize(results)

	printSummary(stdout, summary, results, useColor(stdout, opts.noColor))

	if summary.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pdfredact", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "Path to configuration file (YAML)")
	workers := fs.Int("workers", 0, "Number of documents processed concurrently")
	pageWorkers := fs.Int("page-workers", 0, "Number of pages of one document scanned concurrently")
	fillColor := fs.String("color", "", "Fill color of redacted areas as RRGGBB (default: FFFFFF)")
	verify := fs.Bool("verify", false, "Re-read every redacted file and report text left inside redacted areas")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}

	// Flags override the configuration file
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["workers"] {
		cfg.Processing.Workers = *workers
	}
	if set["page-workers"] {
		cfg.Processing.PageWorkers = *pageWorkers
	}
	if set["color"] {
		cfg.Redaction.FillColor = *fillColor
	}
	if set["verify"] {
		cfg.Redaction.Verify = *verify
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pos := fs.Args()
	if len(pos) < 3 || len(pos) > 4 {
		return nil, fmt.Errorf("expected 3 or 4 arguments, got %d", len(pos))
	}

	opts := &options{
		in:      strings.TrimSpace(pos[0]),
		out:     strings.TrimSpace(pos[1]),
		text:    strings.TrimSpace(pos[2]),
		cfg:     cfg,
		verbose: *verbose,
		noColor: *noColor,
	}
	if len(pos) == 4 {
		if expr := strings.TrimSpace(pos[3]); expr != "" {
			if opts.filter, err = regexp.Compile(expr); err != nil {
				return nil, fmt.Errorf("invalid filename regex: %w", err)
			}
		}
	}

	if !isDir(opts.in) || !isDir(opts.out) {
		return nil, fmt.Errorf("one or both directories do not exist")
	}
	if opts.text == "" {
		return nil, fmt.Errorf("text to search for is empty")
	}
	return opts, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func filterString(re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	return re.String()
}

func useColor(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printSummary(w io.Writer, s batch.Summary, results []batch.Result, colored bool) {
	title := color.New(color.FgWhite, color.Bold)
	positive := color.New(color.FgGreen)
	negative := color.New(color.FgRed)
	warning := color.New(color.FgYellow)
	for _, c := range []*color.Color{title, positive, negative, warning} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, r := range results {
		switch {
		case r.Status == batch.StatusFailed:
			negative.Fprintf(w, "FAILED   %s: %v\n", r.Path, r.Err)
		case len(r.Leaks) > 0:
			warning.Fprintf(w, "LEAKED   %s: %d glyphs inside redacted areas\n", r.Path, len(r.Leaks))
		case r.Status == batch.StatusRedacted:
			positive.Fprintf(w, "REDACTED %s -> %s (%d matches)\n", r.Path, r.Output, r.Matches)
		}
	}

	title.Fprintln(w, "Redaction summary")
	fmt.Fprintf(w, "  Searched files: %d\n", s.Scanned)
	positive.Fprintf(w, "  Redacted files: %d\n", s.Redacted)
	fmt.Fprintf(w, "  Clean files:    %d\n", s.Clean)
	if s.Failed > 0 {
		negative.Fprintf(w, "  Failed files:   %d\n", s.Failed)
	} else {
		fmt.Fprintf(w, "  Failed files:   %d\n", s.Failed)
	}
	if s.Leaks > 0 {
		warning.Fprintf(w, "  Leaked glyphs:  %d\n", s.Leaks)
	}
}
