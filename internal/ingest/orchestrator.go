// Package ingest indexes every video of a channel: it lists the channel's
// videos, fetches and parses each caption track, normalizes the cues into a
// corpus and persists the result. Per-video failures are contained in the
// [Report]; only a failure to list the channel aborts the whole run.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/saidwhen/internal/caption"
	"github.com/MrWong99/saidwhen/internal/observe"
	"github.com/MrWong99/saidwhen/internal/store"
)

// DefaultConcurrency bounds simultaneous per-video ingestions when no
// concurrency is configured.
const DefaultConcurrency = 8

// VideoResult is the outcome of ingesting one video.
type VideoResult struct {
	VideoID string
	Success bool
	Message string

	// Cues is the number of cue records written.
	Cues int

	// Skipped is the number of cues dropped because their timestamps did
	// not parse.
	Skipped int
}

// Report aggregates the per-video outcomes of a channel ingestion. Results
// are in listing order.
type Report struct {
	// RunID identifies one ingestion in logs and traces.
	RunID     string
	ChannelID string
	Total     int
	Failed    int
	Results   []VideoResult
	Duration  time.Duration
}

// Orchestrator runs channel ingestions. It is safe for concurrent use.
type Orchestrator struct {
	lister   VideoLister
	source   CaptionSource
	store    store.Store
	admitter Admitter
	metrics  *observe.Metrics

	concurrency atomic.Int64
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithConcurrency bounds how many videos are ingested at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.SetConcurrency(n) }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an orchestrator that lists videos with lister, downloads
// captions from source, writes to s and admits channels through a.
func New(lister VideoLister, source CaptionSource, s store.Store, a Admitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lister:   lister,
		source:   source,
		store:    s,
		admitter: a,
	}
	o.concurrency.Store(DefaultConcurrency)
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// SetConcurrency changes the per-channel concurrency bound for subsequent
// ingestions. Values below 1 are ignored.
func (o *Orchestrator) SetConcurrency(n int) {
	if n > 0 {
		o.concurrency.Store(int64(n))
	}
}

// Concurrency returns the current concurrency bound.
func (o *Orchestrator) Concurrency() int {
	return int(o.concurrency.Load())
}

// AddChannel registers a channel: the admission pre-check runs first, then
// every video is ingested, then the channel record is written. Ingestion is
// best effort per video; the channel is admitted however many videos failed.
//
// The returned error is a registry error (see package channel) or wraps the
// listing failure.
func (o *Orchestrator) AddChannel(ctx context.Context, name, id string) (rep Report, err error) {
	ctx, span := observe.StartSpan(ctx, "ingest.add_channel",
		trace.WithAttributes(attribute.String("channel.name", name), attribute.String("channel.id", id)))
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx).With("channel", name, "channel_id", id)

	if err := o.admitter.Check(ctx, id, name); err != nil {
		o.metrics.RecordChannelAdd(ctx, "rejected")
		log.Info("channel rejected", "err", err)
		return Report{}, err
	}

	rep, err = o.IngestChannel(ctx, id)
	if err != nil {
		o.metrics.RecordChannelAdd(ctx, "list_failed")
		log.Warn("channel ingestion aborted", "err", err)
		return Report{}, err
	}
	log = log.With("run_id", rep.RunID)
	log.Info(fmt.Sprintf("%d failed out of %d", rep.Failed, rep.Total), "duration", rep.Duration)

	if _, err := o.admitter.Admit(ctx, id, name); err != nil {
		o.metrics.RecordChannelAdd(ctx, "rejected")
		log.Warn("channel admission failed after ingestion", "err", err)
		return rep, err
	}
	o.metrics.RecordChannelAdd(ctx, "admitted")
	log.Info("channel admitted")
	return rep, nil
}

// IngestChannel lists the channel's videos and ingests each of them
// concurrently. It fails only when listing fails.
func (o *Orchestrator) IngestChannel(ctx context.Context, channelID string) (Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ingest.run_id", runID))

	ids, err := o.collectVideos(ctx, channelID)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: list videos of %q: %w", channelID, err)
	}

	results := make([]VideoResult, len(ids))
	var g errgroup.Group
	g.SetLimit(o.Concurrency())
	for i, id := range ids {
		g.Go(func() error {
			results[i] = o.ingestVideo(ctx, channelID, id)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{
		RunID:     runID,
		ChannelID: channelID,
		Total:     len(results),
		Results:   results,
		Duration:  time.Since(start),
	}
	for _, r := range results {
		if !r.Success {
			rep.Failed++
		}
	}
	o.metrics.IngestDuration.Record(ctx, rep.Duration.Seconds())
	return rep, nil
}

// collectVideos drains the lister, dropping repeated ids so that no video is
// ingested twice in one run.
func (o *Orchestrator) collectVideos(ctx context.Context, channelID string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for id, err := range o.lister.Videos(ctx, channelID) {
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ingestVideo never returns an error: every failure, panics included, ends
// up in the result.
func (o *Orchestrator) ingestVideo(ctx context.Context, channelID, videoID string) (res VideoResult) {
	ctx, span := observe.StartSpan(ctx, "ingest.video",
		trace.WithAttributes(attribute.String("video.id", videoID)))

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingest: panic: %v", r)
			res = VideoResult{VideoID: videoID, Message: err.Error()}
		}
		status := "ok"
		if err != nil {
			status = classify(err)
			observe.Logger(ctx).Debug("video not indexed", "video_id", videoID, "err", err)
		}
		o.metrics.RecordVideo(ctx, status)
		o.metrics.RecordCues(ctx, res.Cues, res.Skipped)
		observe.EndSpan(span, err)
	}()

	res, err = o.indexVideo(ctx, channelID, videoID)
	return res
}

func (o *Orchestrator) indexVideo(ctx context.Context, channelID, videoID string) (VideoResult, error) {
	res := VideoResult{VideoID: videoID}

	track, err := o.source.Lookup(ctx, videoID)
	if err != nil {
		res.Message = err.Error()
		if errors.Is(err, ErrNoCaptions) {
			res.Message = "no captions"
		}
		return res, err
	}

	payload, err := o.source.Fetch(ctx, track)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}

	raws, err := caption.ParseVTT(bytes.NewReader(payload))
	if err != nil {
		res.Message = err.Error()
		return res, err
	}

	var b caption.Builder
	for _, raw := range raws {
		out := caption.NormalizeCue(raw)
		if !out.OK() {
			res.Skipped++
			continue
		}
		b.Add(out.Cue)
	}

	if err := o.store.WriteVideo(ctx, channelID, b.Cues(), b.Corpus(videoID)); err != nil {
		res.Message = err.Error()
		return res, err
	}

	res.Success = true
	res.Cues = len(b.Cues())
	res.Message = fmt.Sprintf("indexed %d cues", res.Cues)
	return res, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrNoCaptions):
		return "no_captions"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, caption.ErrNotWebVTT):
		return "bad_payload"
	default:
		return "error"
	}
}
