// Package harvest turns a search query into raw candidates from the news
// feed, web search, literature and video sources.
package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/autotrans-cli/internal/metrics"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/resilience"
)

// Harvester searches one external source. Search never fails past its
// boundary: errors are logged and yield no candidates.
type Harvester interface {
	Name() string
	Search(ctx context.Context, query string, lang model.Language) []model.Candidate
}

// Guard is the per-source call discipline shared by every harvester: a rate
// limiter between calls, a bounded timeout per call and a circuit breaker
// that stops hammering a source that keeps failing within a run.
type Guard struct {
	name    string
	limiter *rate.Limiter
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// GuardConfig configures a Guard. Zero values take defaults.
type GuardConfig struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	BreakerFailures   int
}

// NewGuard creates a Guard for the named source.
func NewGuard(name string, cfg GuardConfig) *Guard {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout: cfg.Timeout,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			ResetTimeout:     5 * time.Minute,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("harvest: breaker state change",
					zap.String("harvester", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// Run executes fn under the guard and converts any failure into an empty
// result.
func (g *Guard) Run(ctx context.Context, query string, lang model.Language, fn func(ctx context.Context) ([]model.Candidate, error)) []model.Candidate {
	log := zap.L().With(
		zap.String("harvester", g.name),
		zap.String("lang", string(lang)),
		zap.String("query", query),
	)

	if err := g.limiter.Wait(ctx); err != nil {
		log.Debug("harvest: limiter wait aborted", zap.Error(err))
		return nil
	}

	cands, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]model.Candidate, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		metrics.HarvestErrorsTotal.WithLabelValues(g.name).Inc()
		log.Warn("harvest: search failed", zap.Error(err))
		return nil
	}

	metrics.HarvestedTotal.WithLabelValues(g.name, string(lang)).Add(float64(len(cands)))
	log.Debug("harvest: search complete", zap.Int("candidates", len(cands)))
	return cands
}

// State reports the guard's breaker state.
func (g *Guard) State() resilience.CircuitState {
	return g.breaker.State()
}
