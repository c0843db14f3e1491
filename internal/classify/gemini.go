package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// GeminiConfig configures the Gemini-backed oracle.
type GeminiConfig struct {
	// ModelName is the bare Gemini model identifier (e.g. "gemini-2.0-flash").
	ModelName string

	// Departments is the enumeration valid department answers are matched
	// against; Fallback is used when no match is found.
	Departments []string
	Fallback    string

	// Timeout bounds each oracle call. Zero means DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond throttles outbound Gemini calls. Zero disables limiting.
	RatePerSecond float64
}

// DefaultTimeout bounds a single oracle network call.
const DefaultTimeout = 30 * time.Second

// Gemini implements Oracle using structured-output generation through
// Genkit's Google AI plugin. It is stateless after construction and safe for
// concurrent use.
type Gemini struct {
	g           *genkit.Genkit
	modelName   string
	departments []string
	fallback    string
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGemini creates a Gemini oracle. logger may be nil.
func NewGemini(g *genkit.Genkit, cfg GeminiConfig, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Gemini{
		g:           g,
		modelName:   "googleai/" + cfg.ModelName,
		departments: cfg.Departments,
		fallback:    cfg.Fallback,
		timeout:     timeout,
		limiter:     limiter,
		logger:      logger,
	}
}

// classifyOutput is the structured response schema for classification.
type classifyOutput struct {
	Summary    string `json:"summary"`
	Urgency    string `json:"urgency"`
	Department string `json:"department"`
	Location   string `json:"location"`
}

// relevanceOutput is the structured response schema for relevance.
type relevanceOutput struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
}

// Classify summarizes and routes a complaint. On any failure (timeout,
// transport, malformed output) it degrades to a text excerpt with Medium
// urgency, the fallback department and the location sentinel. It never
// aborts a submission.
func (c *Gemini) Classify(ctx context.Context, text string) Classification {
	degraded := classifyOutput{
		Summary:    excerpt(text, 200),
		Urgency:    UrgencyMedium,
		Department: c.fallback,
		Location:   LocationNotSpecified,
	}

	out := resilient(ctx, c.logger, "classify", c.timeout, c.limiter, degraded,
		func(ctx context.Context) (classifyOutput, error) {
			resp, err := genkit.Generate(ctx, c.g,
				ai.WithModelName(c.modelName),
				ai.WithPrompt(c.classifyPrompt(text)),
				ai.WithOutputType(classifyOutput{}),
			)
			if err != nil {
				return classifyOutput{}, err
			}
			var out classifyOutput
			if err := resp.Output(&out); err != nil {
				return classifyOutput{}, err
			}
			return out, nil
		})

	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = degraded.Summary
	}
	return Classification{
		Summary:    strings.TrimSpace(out.Summary),
		Urgency:    NormalizeUrgency(out.Urgency),
		Department: NormalizeDepartment(out.Department, c.departments, c.fallback),
		Location:   NormalizeLocation(out.Location),
	}
}

// AssessRelevance judges whether the text is a civic complaint. On failure
// the submission is treated as relevant with low confidence: blocking a
// citizen because the validator is down is the wrong tradeoff.
func (c *Gemini) AssessRelevance(ctx context.Context, text string) Relevance {
	degraded := relevanceOutput{
		IsRelevant: true,
		Confidence: 0.3,
		Category:   "fallback",
		Reason:     "Relevance assessment failed; defaulting to allow submission",
	}

	out := resilient(ctx, c.logger, "assess_relevance", c.timeout, c.limiter, degraded,
		func(ctx context.Context) (relevanceOutput, error) {
			resp, err := genkit.Generate(ctx, c.g,
				ai.WithModelName(c.modelName),
				ai.WithPrompt(relevancePrompt(text)),
				ai.WithOutputType(relevanceOutput{}),
			)
			if err != nil {
				return relevanceOutput{}, err
			}
			var out relevanceOutput
			if err := resp.Output(&out); err != nil {
				return relevanceOutput{}, err
			}
			return out, nil
		})

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if out.Category == "" {
		out.Category = "unknown"
	}
	if out.Reason == "" {
		out.Reason = "No justification provided"
	}
	return Relevance(out)
}

// resilient runs one oracle call with a bounded timeout and optional rate
// limiting, substituting fallback on any error. This is the single place
// where oracle degradation happens; each operation only supplies its
// default-value policy.
func resilient[T any](
	ctx context.Context,
	logger *slog.Logger,
	op string,
	timeout time.Duration,
	limiter *rate.Limiter,
	fallback T,
	fn func(ctx context.Context) (T, error),
) T {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if limiter != nil {
		if err := limiter.Wait(callCtx); err != nil {
			logger.Warn("oracle call degraded to fallback", "op", op, "stage", "rate_limit", "error", err)
			return fallback
		}
	}

	result, err := fn(callCtx)
	if err != nil {
		logger.Warn("oracle call degraded to fallback", "op", op, "error", err)
		return fallback
	}
	return result
}

func (c *Gemini) classifyPrompt(text string) string {
	return fmt.Sprintf(`You are triaging a complaint submitted to a government service portal.

Produce:
- summary: a concise, actionable summary of the main issue, under 100 words.
- urgency: HIGH for emergencies, immediate safety risks or critical infrastructure failures; MEDIUM for issues needing attention within days or weeks; LOW for minor or routine matters.
- department: exactly one of: %s.
- location: the primary location where the issue occurs (street, landmark, area), or "Location not specified" if none is mentioned.

Complaint text:
%s`, strings.Join(c.departments, ", "), text)
}

func relevancePrompt(text string) string {
	return fmt.Sprintf(`You are validating whether the following text is a civic/government complaint that should be handled by a public service portal.

VALID complaints: issues with public infrastructure, utilities, safety, sanitation, transport, governance, corruption, healthcare, education — any report requiring government or municipal attention.

INVALID submissions: personal resumes, biographies, advertisements, job inquiries, promotional content, jokes, essays, or content without an actionable issue for a public department.

Return is_relevant, a confidence between 0 and 1, a short category label, and a one-sentence reason.

Text:
%s`, text)
}
