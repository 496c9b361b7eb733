package redact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/pyhub-apps/pdfredact-golang/pkg/content"
	"github.com/pyhub-apps/pdfredact-golang/pkg/pdf"
)

// ErrReadOnly is returned by Redact for documents that cannot be rewritten
var ErrReadOnly = errors.New("document does not support rewriting pages")

// Option configures Scan and Redact
type Option func(*options)

type options struct {
	pageWorkers int
	logger      *slog.Logger
	applier     []ApplierOption
	extractor   []content.Option
}

// WithPageWorkers sets how many pages are extracted concurrently
func WithPageWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageWorkers = n
		}
	}
}

// WithLogger sets the logger receiving recovered page problems
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithApplierOptions passes options to the Applier used by Redact
func WithApplierOptions(opts ...ApplierOption) Option {
	return func(o *options) {
		o.applier = append(o.applier, opts...)
	}
}

// WithExtractorOptions passes options to the text extractor
func WithExtractorOptions(opts ...content.Option) Option {
	return func(o *options) {
		o.extractor = append(o.extractor, opts...)
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		pageWorkers: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) warner(page int) func(error) {
	return func(err error) {
		o.logger.Warn("recovered page error", "page", page, "error", err)
	}
}

// Outcome describes a redacted document
type Outcome struct {
	Plan    Plan
	Matches []pdf.TextRun
	Pages   int // page count of the document
	Stats   Stats
}

// Redacted reports whether any page was rewritten
func (o Outcome) Redacted() bool {
	return !o.Plan.Empty()
}

// Scan returns the runs of doc whose text equals target, in page order and
// in rendering order within a page
func Scan(ctx context.Context, doc pdf.Document, target string, opts ...Option) ([]pdf.TextRun, error) {
	o := newOptions(opts)
	if target == "" {
		return nil, nil
	}

	count := doc.PageCount()
	perPage := make([][]pdf.TextRun, count)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.pageWorkers)
	for number := 1; number <= count; number++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := doc.Page(number)
			if err != nil {
				return fmt.Errorf("failed to get page %d: %w", number, err)
			}

			extractorOpts := append([]content.Option{content.WithWarningHandler(o.warner(number))}, o.extractor...)
			runs, err := content.NewExtractor(extractorOpts...).PageRuns(page)
			if err != nil {
				return fmt.Errorf("failed to read page %d: %w", number, err)
			}

			perPage[number-1] = Matches(runs, target)
			for _, m := range perPage[number-1] {
				o.logger.Debug("match", "page", m.Page, "rect", m.Rect.String())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(perPage...), nil
}

// Redact removes every occurrence of target from doc. Pages without an
// occurrence are left untouched. Documents that implement pdf.FormStore get
// overlapping form XObjects rewritten instead of clipped.
func Redact(ctx context.Context, doc pdf.Document, target string, opts ...Option) (Outcome, error) {
	o := newOptions(opts)

	matches, err := Scan(ctx, doc, target, opts...)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Plan:    NewPlan(matches),
		Matches: matches,
		Pages:   doc.PageCount(),
	}
	if out.Plan.Empty() {
		return out, nil
	}

	w, ok := doc.(pdf.Writer)
	if !ok {
		return out, ErrReadOnly
	}

	store, _ := doc.(pdf.FormStore)

	for _, number := range out.Plan.Pages() {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		page, err := doc.Page(number)
		if err != nil {
			return out, fmt.Errorf("failed to get page %d: %w", number, err)
		}

		applierOpts := []ApplierOption{WithApplierWarnings(o.warner(number))}
		if store != nil {
			applierOpts = append(applierOpts, WithFormStore(store))
		}
		applier := NewApplier(append(applierOpts, o.applier...)...)
		res, err := applier.ApplyPage(page, out.Plan.Rects(number))
		if err != nil {
			return out, err
		}
		if err := w.SetContent(number, res.Content); err != nil {
			return out, fmt.Errorf("failed to rewrite page %d: %w", number, err)
		}
		out.Stats.Add(res.Stats)
	}

	return out, nil
}
