// Package generation produces meal plans and packing lists. A remote text
// generator is tried first under a hard deadline; whatever goes wrong, the
// deterministic fallback answers instead, so callers always get valid
// content unless the family is not entitled to generation at all.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"family-ops/internal/content"
	"family-ops/internal/entitlement"
	"family-ops/internal/fallback"
	"family-ops/internal/llm"
	"family-ops/internal/ratelimit"
	"family-ops/internal/shared"
)

// Kind names a generated content type.
type Kind string

const (
	KindMealPlan    Kind = "meal_plan"
	KindPackingList Kind = "packing_list"
)

// Source tells where generated content came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 12 * time.Second

// Entitler is the generation precondition.
type Entitler interface {
	RequirePro(ctx context.Context, userID, familyID string) (entitlement.Member, error)
}

// Limiter meters generation per family.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// MetricsRecorder persists one record per generation run.
type MetricsRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Outcome is generated content plus where it came from.
type Outcome[T any] struct {
	Content T
	Source  Source
	// Reason explains why the fallback answered; empty for AI content.
	Reason string
	Meta   shared.AgentMeta
}

// MealPlanRequest asks for a week of meals.
type MealPlanRequest struct {
	UserID   string
	FamilyID string
	// WeekStart is any date in the wanted week; empty means the current week.
	WeekStart   string
	Preferences content.Preferences
}

// MealPlanOutcome carries the seven dates the plan was generated for.
type MealPlanOutcome struct {
	Outcome[content.MealPlan]
	Dates []string
}

// PackingRequest asks for a packing list for a trip.
type PackingRequest struct {
	UserID   string
	FamilyID string
	Trip     content.Trip
}

// PackingOutcome carries the trip with its defaults applied.
type PackingOutcome struct {
	Outcome[content.PackingList]
	Trip content.Trip
}

// Orchestrator runs generation requests.
type Orchestrator struct {
	entitler  Entitler
	textGen   llm.TextGenerator
	validator *content.Validator
	limiter   Limiter
	metrics   MetricsRecorder
	logger    *slog.Logger
	timeout   time.Duration
	loc       *time.Location
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimiter meters AI calls; without one every call may reach the provider.
func WithLimiter(l Limiter) Option { return func(o *Orchestrator) { o.limiter = l } }

// WithMetrics records every run.
func WithMetrics(m MetricsRecorder) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithTimeout sets the deadline for the remote call.
func WithTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.timeout = d } }

// WithLocation sets the reference zone used to compute "today".
func WithLocation(loc *time.Location) Option { return func(o *Orchestrator) { o.loc = loc } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New creates an Orchestrator.
func New(entitler Entitler, textGen llm.TextGenerator, validator *content.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		entitler:  entitler,
		textGen:   textGen,
		validator: validator,
		logger:    slog.Default(),
		timeout:   DefaultTimeout,
		loc:       time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MealPlan generates seven days of meals starting on the Monday of the
// requested week. Only entitlement failures are returned as errors.
func (o *Orchestrator) MealPlan(ctx context.Context, req MealPlanRequest) (MealPlanOutcome, error) {
	if _, err := o.entitler.RequirePro(ctx, req.UserID, req.FamilyID); err != nil {
		return MealPlanOutcome{}, err
	}

	dates := o.weekDates(req.WeekStart)
	prompt, err := buildMealPlanPrompt(req.Preferences, dates)
	out := run(ctx, o, KindMealPlan, req.FamilyID, prompt, err,
		func(raw []byte) content.Result[content.MealPlan] { return o.validator.MealPlan(raw, dates) },
		func() content.MealPlan { return fallback.MealPlan(dates, req.Preferences) },
	)
	return MealPlanOutcome{Outcome: out, Dates: dates}, nil
}

// PackingList generates a packing list for the trip. Only entitlement
// failures are returned as errors.
func (o *Orchestrator) PackingList(ctx context.Context, req PackingRequest) (PackingOutcome, error) {
	if _, err := o.entitler.RequirePro(ctx, req.UserID, req.FamilyID); err != nil {
		return PackingOutcome{}, err
	}

	trip := req.Trip.WithDefaults(o.today())
	prompt, err := buildPackingPrompt(trip)
	out := run(ctx, o, KindPackingList, req.FamilyID, prompt, err,
		o.validator.PackingList,
		func() content.PackingList { return fallback.PackingList(trip) },
	)
	return PackingOutcome{Outcome: out, Trip: trip}, nil
}

func (o *Orchestrator) today() string {
	return shared.TodayISO(o.now(), o.loc)
}

func (o *Orchestrator) weekDates(weekStart string) []string {
	if weekStart != "" {
		dates, err := shared.WeekDates(weekStart)
		if err == nil {
			return dates
		}
		o.logger.Warn("generation.week_start_invalid", "week_start", weekStart, "err", err)
	}
	dates, _ := shared.WeekDates(o.today())
	return dates
}

type callResult struct {
	resp llm.ContentResponse
	err  error
}

// run asks the provider for content and falls back on any failure: prompt
// rendering, quota, provider error, deadline or validation.
func run[T any](
	ctx context.Context,
	o *Orchestrator,
	kind Kind,
	familyID string,
	prompt string,
	promptErr error,
	validate func([]byte) content.Result[T],
	fallbackFn func() T,
) Outcome[T] {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: string(kind)}

	value, reason := tryAI(ctx, o, kind, familyID, prompt, promptErr, validate, &meta)
	source := SourceAI
	if reason != "" {
		value = fallbackFn()
		source = SourceFallback
		meta.Fallback = true
		meta.FallbackReason = reason
	}
	meta.Latency = time.Since(start)

	log := o.logger.With("kind", kind, "family_id", familyID, "source", source, "latency_ms", meta.Latency.Milliseconds())
	if source == SourceFallback {
		log.Warn("generation.fallback", "reason", reason)
	} else {
		log.Info("generation.complete", "prompt_tokens", meta.Usage.PromptTokens, "completion_tokens", meta.Usage.CompletionTokens, "total_tokens", meta.Usage.Total())
	}

	if o.metrics != nil {
		if err := o.metrics.RecordMeta(ctx, meta); err != nil {
			o.logger.Error("generation.metrics_failed", "kind", kind, "err", err)
		}
	}

	return Outcome[T]{Content: value, Source: source, Reason: reason, Meta: meta}
}

// tryAI returns validated content, or a non-empty reason explaining why the
// fallback must answer.
func tryAI[T any](
	ctx context.Context,
	o *Orchestrator,
	kind Kind,
	familyID string,
	prompt string,
	promptErr error,
	validate func([]byte) content.Result[T],
	meta *shared.AgentMeta,
) (T, string) {
	var zero T
	if promptErr != nil {
		return zero, promptErr.Error()
	}
	if o.textGen == nil {
		return zero, llm.ErrDisabled.Error()
	}

	if o.limiter != nil {
		d, err := o.limiter.Allow(ctx, familyID)
		if err != nil {
			return zero, fmt.Sprintf("quota check failed: %v", err)
		}
		if !d.Allowed {
			return zero, "quota exceeded: " + d.Reason
		}
	}

	resp, err := o.call(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Sprintf("generation timed out after %s", o.timeout)
		}
		return zero, err.Error()
	}
	meta.Usage = resp.Usage

	result := validate([]byte(resp.Content))
	if !result.OK() {
		o.logger.Debug("generation.invalid_output", "kind", kind, "content", resp.Content)
		return zero, result.Reason()
	}
	return result.Value(), ""
}

// call races the provider against the deadline. A late answer is dropped;
// the buffered channel lets the goroutine finish without a reader.
func (o *Orchestrator) call(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan callResult, 1)
	go func() {
		resp, err := o.textGen.GenerateContent(callCtx, prompt)
		results <- callResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.resp, r.err
	case <-timer.C:
		return llm.ContentResponse{}, context.DeadlineExceeded
	case <-ctx.Done():
		return llm.ContentResponse{}, ctx.Err()
	}
}
