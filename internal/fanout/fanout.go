// Package fanout dispatches one prompt to many models concurrently and joins
// the outcomes.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llmarena/internal/core"
	"llmarena/internal/upstream"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Querier runs a single model query. *upstream.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, q upstream.Query) (core.ModelOutcome, core.DebugTrace)
	TraceRequest(q upstream.Query) core.TraceRequest
}

// PromptRecorder receives every prompt submitted for comparison.
type PromptRecorder interface {
	Record(prompt string)
}

// Config configures a Coordinator.
type Config struct {
	Querier        Querier
	History        PromptRecorder
	MaxConcurrency int
	Logger         core.Logger
}

// Coordinator fans a prompt out to a set of models with bounded concurrency.
type Coordinator struct {
	querier        Querier
	history        PromptRecorder
	maxConcurrency int
	logger         core.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = core.DefaultFanoutConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	return &Coordinator{
		querier:        cfg.Querier,
		history:        cfg.History,
		maxConcurrency: cfg.MaxConcurrency,
		logger:         cfg.Logger,
	}
}

// Compare records prompt in history, queries every distinct model in
// modelIDs, and waits for all of them. Results are in completion order and
// DebugInfo has exactly one entry per distinct model.
func (c *Coordinator) Compare(ctx context.Context, prompt string, modelIDs []string, injectedHTML string) core.Comparison {
	if c.history != nil {
		c.history.Record(prompt)
	}

	models := dedupe(modelIDs)
	comparison := core.Comparison{
		Results:   make([]core.ModelOutcome, 0, len(models)),
		DebugInfo: make(map[string]core.DebugTrace, len(models)),
	}
	if len(models) == 0 {
		return comparison
	}

	comparisonID := uuid.NewString()
	c.logger.Info("Comparison %s: dispatching %d models (limit %d)", comparisonID, len(models), c.maxConcurrency)
	startTime := time.Now()

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)

	for _, model := range models {
		q := upstream.Query{
			Model:        model,
			Prompt:       prompt,
			InjectedHTML: injectedHTML,
			Endpoint:     core.EndpointCompare,
		}
		g.Go(func() error {
			outcome, trace := c.run(ctx, comparisonID, q)

			mu.Lock()
			comparison.Results = append(comparison.Results, outcome)
			comparison.DebugInfo[q.Model] = trace
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, outcome := range comparison.Results {
		if !outcome.OK() {
			failures++
		}
	}
	c.logger.Info("Comparison %s: %d models done in %v, %d failed",
		comparisonID, len(models), time.Since(startTime).Round(time.Millisecond), failures)

	return comparison
}

// run executes one query, converting a panic into a ModelError.
func (c *Coordinator) run(ctx context.Context, comparisonID string, q upstream.Query) (outcome core.ModelOutcome, trace core.DebugTrace) {
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("unexpected error: %v", r)
			c.logger.Error("Comparison %s: model %s panicked: %v", comparisonID, q.Model, r)
			outcome = core.Failed(q.Model, message)
			trace = core.FailureTrace(c.safeTraceRequest(q), message)
		}
	}()
	return c.querier.Query(ctx, q)
}

// safeTraceRequest builds the trace request, falling back to a bare one when
// the querier itself is broken.
func (c *Coordinator) safeTraceRequest(q upstream.Query) (req core.TraceRequest) {
	defer func() {
		if recover() != nil {
			req = core.TraceRequest{Data: core.ChatCompletionRequest{Model: q.Model, Messages: upstream.BuildMessages(q)}}
		}
	}()
	return c.querier.TraceRequest(q)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
