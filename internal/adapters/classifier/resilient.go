package classifier

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/observability"
)

// Backend is a raw classification provider, without retry or timeout
// discipline of its own.
type Backend interface {
	Classify(ctx context.Context, content Content) (Verdict, error)
}

// ResilientConfig bounds how long a single classification attempt may take and
// how many times a transient failure is retried.
type ResilientConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout:      10 * time.Second,
		MaxRetries:   2,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

type Resilient struct {
	backend Backend
	config  ResilientConfig
	logger  *log.Entry
}

func NewResilient(backend Backend, config ResilientConfig, logger *log.Entry) *Resilient {
	if config.Timeout <= 0 {
		config.Timeout = DefaultResilientConfig().Timeout
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultResilientConfig().InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultResilientConfig().MaxDelay
	}
	return &Resilient{
		backend: backend,
		config:  config,
		logger:  logger,
	}
}

func (r *Resilient) Classify(ctx context.Context, content Content) (Verdict, error) {
	start := time.Now()
	defer func() {
		observability.ObserveClassifierCall(time.Since(start).Seconds())
	}()

	delay := r.config.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
			select {
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			case <-time.After(jittered):
			}
			delay *= 2
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		verdict, err := r.backend.Classify(attemptCtx, content)
		cancel()
		if err == nil {
			return verdict, nil
		}
		lastErr = err

		if IsRateLimited(err) {
			// No point hammering an exhausted quota, the caller decides
			// whether to skip the remaining content.
			return Verdict{}, guarderrors.ErrRateLimited
		}
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		r.logger.WithError(err).WithField("attempt", attempt+1).Warn("classifier attempt failed")
	}

	return Verdict{}, fmt.Errorf("%w: %v", guarderrors.ErrClassifierUnavailable, lastErr)
}

func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted")
}
