// Package eval runs a directory of receipt images against several vision
// vendors and reports how each vendor did.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/receipt-cam/internal/scanning"
)

const defaultConcurrency = 4

// imageExtensions lists the files picked up from the evaluation directory
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".heif": true,
	".pdf":  true,
}

// Analyzer is one vendor's receipt analysis service
type Analyzer interface {
	AnalyzeReceipt(ctx context.Context, imageData []byte) (*scanning.Receipt, error)
	Close() error
}

// AnalyzerFactory builds the Analyzer for a vendor
type AnalyzerFactory func(vendor string) (Analyzer, error)

// Result is the outcome of one image against one vendor
type Result struct {
	ImageFile string
	Vendor    string
	Timestamp time.Time
	Duration  time.Duration
	Receipt   *scanning.Receipt
	Err       error
}

// Option configures a Runner
type Option func(*Runner)

// WithConcurrency bounds how many analyses run at once
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// WithClock sets the clock used for timestamps
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithTimeout bounds each analysis
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// Runner evaluates images against vendors
type Runner struct {
	factory     AnalyzerFactory
	concurrency int
	timeout     time.Duration
	clock       clock.Clock
}

// NewRunner creates a Runner
func NewRunner(factory AnalyzerFactory, opts ...Option) *Runner {
	r := &Runner{
		factory:     factory,
		concurrency: defaultConcurrency,
		clock:       clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Images returns the evaluation images in dir, sorted by name
func Images(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading evaluation directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

// Run analyzes every image with every vendor. Individual failures are recorded
// in the results; only cancellation of ctx stops the run early.
func (r *Runner) Run(ctx context.Context, images, vendors []string) ([]Result, error) {
	analyzers := make(map[string]Analyzer, len(vendors))
	setupErrs := make(map[string]error)
	for _, vendor := range vendors {
		a, err := r.factory(vendor)
		if err != nil {
			slog.Error("Failed to create analyzer", "vendor", vendor, "error", err)
			setupErrs[vendor] = err
			continue
		}
		analyzers[vendor] = a
	}
	defer func() {
		var err error
		for _, a := range analyzers {
			err = multierr.Append(err, a.Close())
		}
		if err != nil {
			slog.Warn("Failed to close analyzers", "error", err)
		}
	}()

	results := make([]Result, len(images)*len(vendors))

	g, ctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for i, image := range images {
		for j, vendor := range vendors {
			result := &results[i*len(vendors)+j]
			result.ImageFile = filepath.Base(image)
			result.Vendor = vendor

			if err, ok := setupErrs[vendor]; ok {
				result.Timestamp = r.clock.Now()
				result.Err = err
				continue
			}

			analyzer := analyzers[vendor]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.evaluate(ctx, analyzer, image, result)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("running evaluations: %w", err)
	}
	return results, nil
}

// evaluate fills result with one analysis of image
func (r *Runner) evaluate(ctx context.Context, analyzer Analyzer, image string, result *Result) {
	start := r.clock.Now()
	result.Timestamp = start
	defer func() {
		result.Duration = r.clock.Since(start)
	}()

	slog.Info("Evaluating image", "image", result.ImageFile, "vendor", result.Vendor)

	data, err := os.ReadFile(image)
	if err != nil {
		result.Err = fmt.Errorf("reading image: %w", err)
		return
	}

	jpegData, _, err := scanning.PrepareImage(data, scanning.ContentTypeFor(image))
	if err != nil {
		result.Err = fmt.Errorf("preparing image: %w", err)
		return
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	receipt, err := analyzer.AnalyzeReceipt(ctx, jpegData)
	if err != nil {
		slog.Error("Evaluation failed", "image", result.ImageFile, "vendor", result.Vendor, "error", err)
		result.Err = err
		return
	}
	result.Receipt = receipt
}
