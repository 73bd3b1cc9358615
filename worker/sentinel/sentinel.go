package sentinel

import (
	"context"
	"time"

	"auralend/core"
	"auralend/internal/auralend"
	"auralend/pkg/number"
	"auralend/worker"

	"github.com/fox-one/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Worker periodically scans all obligations and reports the ones that
// crossed the liquidation line, so liquidators do not have to poll the
// api themselves.
type Worker struct {
	worker.BaseJob
	obligationStore core.IObligationStore
	market          *core.MarketConfig
	ctx             context.Context
}

// New new sentinel worker
func New(obligationStore core.IObligationStore, market *core.MarketConfig, spec string) *Worker {
	if spec == "" {
		spec = "@every 1m"
	}

	w := &Worker{
		obligationStore: obligationStore,
		market:          market,
	}

	c := cron.New()
	w.BaseJob = worker.BaseJob{
		Cron:   c,
		OnWork: w.onWork,
	}
	if _, err := c.AddJob(spec, &w.BaseJob); err != nil {
		panic(err)
	}

	return w
}

// Run run worker
func (w *Worker) Run(ctx context.Context) error {
	w.ctx = ctx

	if err := w.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	return w.Stop()
}

func (w *Worker) onWork() error {
	ctx := w.ctx
	log := logger.FromContext(ctx).WithField("worker", "sentinel")

	obligations, err := w.obligationStore.All(ctx)
	if err != nil {
		log.WithError(err).Errorln("fetch obligations failed")
		return err
	}

	sequence, err := auralend.CurrentSequence(time.Now(), w.market.Genesis, w.market.SecondsPerSequence)
	if err != nil {
		return err
	}

	unhealthy := 0
	for _, obligation := range obligations {
		if !obligation.HasDebts() {
			continue
		}

		// a cached valuation past the staleness budget is no basis for a
		// liquidation signal
		if obligation.IsStale(sequence, w.market.MaxStalenessSequences) {
			log.Debugln("skip stale obligation:", obligation.UserID)
			continue
		}

		factor, err := obligation.HealthFactor()
		if err != nil {
			log.WithError(err).Errorln("health factor failed:", obligation.UserID)
			continue
		}

		if factor.LessThan(number.One()) {
			unhealthy++
			log.Infof("liquidatable obligation %s, health factor %s", obligation.UserID, factor.String())
		}
	}

	if unhealthy > 0 {
		log.Infoln("liquidatable obligations:", unhealthy)
	}

	return nil
}
