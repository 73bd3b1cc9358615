package cmd

import (
	"sync"

	"auralend/worker"
	"auralend/worker/accrual"
	"auralend/worker/pricesync"
	"auralend/worker/sentinel"

	"github.com/fox-one/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "auralend job worker",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := logger.FromContext(ctx)
		ctx = logger.WithContext(ctx, log)

		database := provideDatabase()
		defer database.Close()

		propertyStore := providePropertyStore(database)
		reserveStore := provideReserveStore(database)
		obligationStore := provideObligationStore(database)
		priceStore := providePriceStore(database)

		validator := provideOracleValidator()
		priceSrv := providePriceService(priceStore)
		reserveSrv := provideReserveService(reserveStore)

		workers := []worker.Worker{
			accrual.New(database, &cfg, reserveStore, reserveSrv),
			pricesync.New(database, priceStore, priceSrv, validator, propertyStore, cfg.Market.Emergency),
			sentinel.New(obligationStore, &cfg.Market, "@every 1m"),
		}

		wg := sync.WaitGroup{}
		for _, w := range workers {
			wg.Add(1)

			go func(worker worker.Worker) {
				defer wg.Done()
				_ = worker.Run(ctx)
			}(w)
		}

		wg.Wait()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
