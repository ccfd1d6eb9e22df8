package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/vibecheck/internal/extract"
	"github.com/ryosukesatoh/vibecheck/internal/fetcher"
	"github.com/ryosukesatoh/vibecheck/internal/metrics"
	"github.com/ryosukesatoh/vibecheck/internal/publisher"
	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

// Options parameterise one canonical pipeline.
type Options struct {
	Mode              extract.Mode
	Variant           summarizer.Variant
	Sort              string
	Window            string
	MaxThreads        int
	Reply             fetcher.ReplyOptions
	Thresholds        extract.Thresholds
	Cap               int
	VerifyQuotes      bool
	SourceTimeout     time.Duration
	CompletionTimeout time.Duration
}

// ProfileFor returns the options of mode: strict filters comments, searches
// ten threads and asks for the extended schema; simple keeps every comment,
// searches five threads and asks for the basic schema.
func ProfileFor(mode extract.Mode) Options {
	opts := Options{
		Mode:              mode,
		Sort:              "relevance",
		Window:            "week",
		Reply:             fetcher.DefaultReplyOptions(),
		Thresholds:        extract.DefaultThresholds(),
		Cap:               extract.DefaultCap,
		VerifyQuotes:      true,
		SourceTimeout:     30 * time.Second,
		CompletionTimeout: 60 * time.Second,
	}
	if mode == extract.ModeStrict {
		opts.MaxThreads = 10
		opts.Variant = summarizer.VariantExtended
	} else {
		opts.MaxThreads = 5
		opts.Variant = summarizer.VariantBasic
	}
	return opts
}

// Runner orchestrates the search -> collect -> summarize pipeline and, in
// scheduled mode, publishing.
type Runner struct {
	opts       Options
	fetcher    fetcher.Fetcher
	summarizer summarizer.Summarizer
	publishers []publisher.Publisher
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

// Option customises a Runner.
type Option func(*Runner)

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = l }
}

func New(opts Options, f fetcher.Fetcher, s summarizer.Summarizer, pubs []publisher.Publisher, options ...Option) *Runner {
	r := &Runner{
		opts:       opts,
		fetcher:    f,
		summarizer: s,
		publishers: pubs,
	}
	for _, o := range options {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	return r
}

// Options returns the pipeline options.
func (r *Runner) Options() Options { return r.opts }

// Run executes the pipeline once for keyword. It returns either a digest or
// a *Error carrying exactly one Kind.
func (r *Runner) Run(ctx context.Context, keyword string) (*summarizer.Digest, error) {
	log := r.log.WithFields(logrus.Fields{
		"run_id":  uuid.New().String(),
		"keyword": keyword,
		"mode":    string(r.opts.Mode),
	})

	digest, err := r.run(ctx, log, keyword)
	if err != nil {
		kind := KindOf(err)
		r.metrics.Runs.WithLabelValues(string(kind)).Inc()
		log.WithError(err).WithField("kind", string(kind)).Error("Pipeline failed")
		return nil, err
	}

	r.metrics.Runs.WithLabelValues("ok").Inc()
	return digest, nil
}

func (r *Runner) run(ctx context.Context, log logrus.FieldLogger, keyword string) (*summarizer.Digest, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, newError(KindInvalidInput, fetcher.ErrEmptyKeyword)
	}

	// Step 1: Search
	log.WithField("max_threads", r.opts.MaxThreads).Info("Searching threads...")
	start := time.Now()
	searchCtx, cancel := r.sourceContext(ctx)
	threads, err := r.fetcher.Search(searchCtx, keyword, fetcher.SearchOptions{
		Sort:   r.opts.Sort,
		Window: r.opts.Window,
		Limit:  r.opts.MaxThreads,
	})
	cancel()
	r.metrics.ObserveStage("search", start)
	if err != nil {
		if errors.Is(err, fetcher.ErrEmptyKeyword) {
			return nil, newError(KindInvalidInput, err)
		}
		return nil, newError(KindUpstreamSourceFailure, err)
	}
	log.Infof("Found %d threads", len(threads))

	// Step 2: Collect comments
	start = time.Now()
	collector := &extract.Collector{
		Predicate: extract.PredicateFor(r.opts.Mode, r.opts.Thresholds),
		MaxDepth:  r.opts.Reply.Depth,
		Cap:       r.opts.Cap,
		Logger:    log,
		OnExpandFailure: func(fetcher.Thread, error) {
			r.metrics.ThreadExpansionFailures.Inc()
		},
	}
	set, err := collector.Collect(ctx, threads, r.expand)
	r.metrics.ObserveStage("collect", start)
	if err != nil {
		return nil, newError(KindUpstreamSourceFailure, err)
	}
	r.metrics.CommentsCollected.Observe(float64(set.Len()))
	log.WithFields(logrus.Fields{
		"comments":       set.Len(),
		"failed_threads": set.FailedThreads,
		"dropped":        set.Dropped,
	}).Info("Collected comments")

	// Step 3: Summarize
	start = time.Now()
	completionCtx, cancel := r.completionContext(ctx)
	digest, err := r.summarizer.Summarize(completionCtx, keyword, set.Texts)
	cancel()
	r.metrics.ObserveStage("summarize", start)
	if err != nil {
		if errors.Is(err, summarizer.ErrMalformedDigest) {
			var mde *summarizer.MalformedDigestError
			if errors.As(err, &mde) && mde.Raw != "" {
				log.WithField("raw", mde.Raw).Debug("Rejected model output")
			}
			return nil, newError(KindMalformedDigest, err)
		}
		return nil, newError(KindCompletionServiceFailure, err)
	}

	// Step 4: Check quotes against the input
	if r.opts.VerifyQuotes {
		report := summarizer.VerifyProvenance(digest, set.Texts)
		r.metrics.QuotesDropped.WithLabelValues("praisePoints").Add(float64(report.PraiseDropped))
		r.metrics.QuotesDropped.WithLabelValues("painPoints").Add(float64(report.PainDropped))
		r.metrics.QuotesDropped.WithLabelValues("requestedFeatures").Add(float64(report.FeatureDropped))
		if report.Dropped() > 0 {
			log.WithField("dropped", report.Dropped()).Warn("Removed digest points with unverifiable quotes")
		}
	}

	log.WithFields(logrus.Fields{
		"praise_points":      len(digest.PraisePoints),
		"pain_points":        len(digest.PainPoints),
		"requested_features": len(digest.RequestedFeatures),
	}).Info("Generated digest")

	return digest, nil
}

func (r *Runner) expand(ctx context.Context, thread fetcher.Thread) (fetcher.Thread, error) {
	expandCtx, cancel := r.sourceContext(ctx)
	defer cancel()
	return r.fetcher.ExpandReplies(expandCtx, thread, r.opts.Reply)
}

func (r *Runner) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.SourceTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.SourceTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) completionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.CompletionTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.CompletionTimeout)
	}
	return context.WithCancel(ctx)
}

// Publish sends digest to every publisher, continuing past individual
// failures. It fails only when every publisher failed.
func (r *Runner) Publish(ctx context.Context, keyword string, digest *summarizer.Digest) error {
	var publishErrors []error
	for _, pub := range r.publishers {
		log := r.log.WithFields(logrus.Fields{"keyword": keyword, "publisher": fmt.Sprintf("%T", pub)})
		if err := pub.Publish(ctx, keyword, digest); err != nil {
			publishErrors = append(publishErrors, fmt.Errorf("publish via %T failed: %w", pub, err))
			log.WithError(err).Warn("Publish failed")
			continue
		}
		log.Info("Published digest")
	}

	if len(publishErrors) == len(r.publishers) && len(r.publishers) > 0 {
		return fmt.Errorf("runner: all publishers failed: %w", errors.Join(publishErrors...))
	}
	if len(publishErrors) > 0 {
		r.log.Warnf("Published with %d failures out of %d publishers", len(publishErrors), len(r.publishers))
	}
	return nil
}

// RunAll runs the pipeline for each keyword in turn and publishes every
// digest produced. A failing keyword does not stop the others; the returned
// error joins all failures.
func (r *Runner) RunAll(ctx context.Context, keywords []string) error {
	var errs []error
	for _, kw := range keywords {
		digest, err := r.Run(ctx, kw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Publish(ctx, kw, digest); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
