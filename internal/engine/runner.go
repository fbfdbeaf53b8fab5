package engine

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/gasbridge/internal/wallet"
)

// DelayRange is the inclusive pause between wallets, in whole seconds.
type DelayRange struct {
	Min, Max int
}

// Validate checks 0 <= Min <= Max.
func (d DelayRange) Validate() error {
	if d.Min < 0 || d.Max < d.Min {
		return fmt.Errorf("delay bounds [%d, %d] must satisfy 0 <= min <= max", d.Min, d.Max)
	}
	return nil
}

// Pick returns a uniform delay in [Min, Max] seconds. intN defaults to
// math/rand.
func (d DelayRange) Pick(intN func(n int) int) time.Duration {
	if intN == nil {
		intN = rand.Intn
	}
	seconds := d.Min
	if d.Max > d.Min {
		seconds += intN(d.Max - d.Min + 1)
	}
	return time.Duration(seconds) * time.Second
}

// WalletProcessor runs the pipeline for one wallet. *Engine satisfies it.
// Run attaches its run-scoped logger to ctx.
type WalletProcessor interface {
	ProcessWallet(ctx context.Context, index int, key *ecdsa.PrivateKey) Outcome
}

// Runner processes every wallet of a key source strictly one at a time.
type Runner struct {
	Keys   wallet.KeySource
	Engine WalletProcessor
	Delay  DelayRange
	Logger zerolog.Logger

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	IntN  func(n int) int
}

// Run returns the summary of every wallet processed. A wallet failure never
// stops the run; only cancellation does, in which case the summary covers the
// wallets finished so far.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.Logger.With().Str("run_id", runID).Logger()
	summary := Summary{RunID: runID}
	ctx = logger.WithContext(ctx)

	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	total := r.Keys.Len()
	logger.Info().Int("wallets", total).Msg("Run started")

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		key, err := r.Keys.Key(i)
		if err != nil {
			out := Outcome{Index: i, Status: StatusFailed, Err: err}
			logger.Error().Int("wallet", i).Err(err).Msg("Wallet key unavailable")
			summary.Outcomes = append(summary.Outcomes, out)
		} else {
			summary.Outcomes = append(summary.Outcomes, r.Engine.ProcessWallet(ctx, i, key))
		}

		if i == total-1 {
			break
		}
		delay := r.Delay.Pick(r.IntN)
		logger.Info().Dur("delay", delay).Msg("Waiting before next wallet")
		if err := sleep(ctx, delay); err != nil {
			return summary, err
		}
	}

	logger.Info().
		Int("sent", summary.Sent()).
		Int("confirmed", summary.Count(StatusConfirmed)).
		Int("skipped", summary.Count(StatusSkipped)).
		Int("failed", summary.Count(StatusFailed)).
		Msg("Run finished")
	return summary, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
