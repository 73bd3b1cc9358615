package accrual

import (
	"context"
	"time"

	"auralend/core"
	"auralend/internal/auralend"
	"auralend/pkg/concurrency"
	"auralend/worker"

	"github.com/fox-one/pkg/logger"
	"github.com/fox-one/pkg/store/db"
	"golang.org/x/sync/errgroup"
)

// Worker refreshes every reserve's interest state once per tick so
// rates and accrued interest never drift far behind the clock.
type Worker struct {
	worker.TickWorker
	database     *db.DB
	config       *core.Config
	reserveStore core.IReserveStore
	reserveSrv   core.IReserveService
}

// New new accrual worker
func New(database *db.DB, config *core.Config, reserveStore core.IReserveStore, reserveSrv core.IReserveService) *Worker {
	return &Worker{
		TickWorker:   worker.TickWorker{Delay: 10 * time.Second},
		database:     database,
		config:       config,
		reserveStore: reserveStore,
		reserveSrv:   reserveSrv,
	}
}

// Run run worker
func (w *Worker) Run(ctx context.Context) error {
	return w.StartTick(ctx, func(ctx context.Context) error {
		return w.onWork(ctx)
	})
}

func (w *Worker) onWork(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("worker", "accrual")

	reserves, err := w.reserveStore.All(ctx)
	if err != nil {
		log.Errorln("fetch all reserves error:", err)
		return err
	}

	now := time.Now()
	sequence, err := auralend.CurrentSequence(now, w.config.Market.Genesis, w.config.Market.SecondsPerSequence)
	if err != nil {
		return err
	}

	limit := concurrency.NewGoLimit(8)
	defer limit.Close()

	var g errgroup.Group
	for _, reserve := range reserves {
		reserve := reserve
		limit.Add()
		g.Go(func() error {
			defer limit.Done()

			err := w.database.Tx(func(tx *db.DB) error {
				return w.reserveSrv.Refresh(ctx, tx, reserve, sequence)
			})
			if err != nil {
				log.WithError(err).Errorln("refresh reserve failed:", reserve.AssetID)
			}

			// one bad reserve must not starve the rest
			return nil
		})
	}

	return g.Wait()
}
