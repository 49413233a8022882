package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/curaview/patient-portal/internal/metrics"
	"github.com/curaview/patient-portal/internal/repository"
	"github.com/robfig/cron/v3"
)

// Pruner deletes tokens that are already past their validity window.
// Verification never depends on it — an expired row that hasn't been
// pruned yet is still rejected — so this is purely about keeping the
// auth_tokens table from growing forever.
type Pruner struct {
	tokens repository.TokenRepository
	logger *slog.Logger
	cron   *cron.Cron
}

func NewPruner(tokens repository.TokenRepository, logger *slog.Logger) *Pruner {
	return &Pruner{
		tokens: tokens,
		logger: logger.With("component", "pruner"),
		cron:   cron.New(),
	}
}

func (p *Pruner) Start() error {
	if _, err := p.cron.AddFunc("@daily", p.run); err != nil {
		return err
	}
	p.cron.Start()
	return nil
}

// Stop waits for an in-flight prune cycle to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	n, err := p.tokens.DeleteExpired(ctx)
	metrics.PruneCycleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("prune expired tokens", "error", err)
		return
	}

	metrics.TokensPrunedTotal.Add(float64(n))
	if n > 0 {
		p.logger.Info("pruned expired tokens", "count", n)
	}
}
