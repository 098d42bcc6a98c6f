package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// PlanLimit is the request budget of one plan.
type PlanLimit struct {
	RequestsPerMinute int
	Burst             int
}

func DefaultPlanLimits() map[domain.PlanID]PlanLimit {
	return map[domain.PlanID]PlanLimit{
		domain.PlanFree:              {RequestsPerMinute: 30, Burst: 5},
		domain.PlanLocalBoost:        {RequestsPerMinute: 60, Burst: 10},
		domain.PlanGrowthAccelerator: {RequestsPerMinute: 120, Burst: 20},
		domain.PlanScale:             {RequestsPerMinute: 300, Burst: 50},
		domain.PlanEnterprise:        {RequestsPerMinute: 600, Burst: 100},
	}
}

// PlanResolver returns the plan an account is billed on.
type PlanResolver func(ctx context.Context, id domain.AccountID) (domain.PlanID, error)

// PlanRateLimiter throttles API calls per account, sized by plan. A plan
// change takes effect once the account's limiter is rebuilt.
type PlanRateLimiter struct {
	mu       sync.Mutex
	limits   map[domain.PlanID]PlanLimit
	limiters map[domain.AccountID]planLimiter
	resolve  PlanResolver
}

type planLimiter struct {
	plan    domain.PlanID
	limiter *rate.Limiter
}

func NewPlanRateLimiter(limits map[domain.PlanID]PlanLimit, resolve PlanResolver) *PlanRateLimiter {
	if limits == nil {
		limits = DefaultPlanLimits()
	}
	return &PlanRateLimiter{
		limits:   limits,
		limiters: make(map[domain.AccountID]planLimiter),
		resolve:  resolve,
	}
}

func (l *PlanRateLimiter) limiterFor(id domain.AccountID, plan domain.PlanID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.limiters[id]; ok && existing.plan == plan {
		return existing.limiter
	}

	limit, ok := l.limits[plan]
	if !ok {
		limit = l.limits[domain.LowestPlan]
	}
	limiter := rate.NewLimiter(rate.Limit(float64(limit.RequestsPerMinute)/60.0), limit.Burst)
	l.limiters[id] = planLimiter{plan: plan, limiter: limiter}

	return limiter
}

// Allow consumes one request from the account's budget.
func (l *PlanRateLimiter) Allow(ctx context.Context, id domain.AccountID) (bool, domain.PlanID, error) {
	plan, err := l.resolve(ctx, id)
	if err != nil {
		return false, "", err
	}
	return l.limiterFor(id, plan).Allow(), plan, nil
}

// Middleware throttles requests addressed to /accounts/:id.
func (l *PlanRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := domain.AccountID(c.Param("id"))
			if id == "" {
				return next(c)
			}

			allowed, plan, err := l.Allow(c.Request().Context(), id)
			if err != nil {
				return err
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, errorResponse{
					Error:   "rate_limit_exceeded",
					Message: "rate limit exceeded for the " + string(plan) + " plan",
				})
			}

			return next(c)
		}
	}
}
