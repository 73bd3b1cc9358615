package cmd

import (
	"auralend/core"
	"auralend/service/liquidation"
	obligationservice "auralend/service/obligation"
	"auralend/service/oracle"
	reserveservice "auralend/service/reserve"
	"auralend/store/obligation"
	"auralend/store/price"
	"auralend/store/reserve"

	"github.com/fox-one/pkg/property"
	"github.com/fox-one/pkg/store/db"
	propertystore "github.com/fox-one/pkg/store/property"
)

func provideDatabase() *db.DB {
	return db.MustOpen(cfg.DB)
}

func providePropertyStore(db *db.DB) property.Store {
	return propertystore.New(db)
}

func provideReserveStore(db *db.DB) core.IReserveStore {
	return reserve.New(db)
}

func provideObligationStore(db *db.DB) core.IObligationStore {
	return obligation.New(db)
}

func providePriceStore(db *db.DB) core.IPriceStore {
	return price.New(db)
}

func provideOracleValidator() core.IOracleValidator {
	return oracle.NewValidator(&cfg.Oracle, cfg.Market.Emergency)
}

func providePriceService(priceStore core.IPriceStore) core.IPriceOracleService {
	return oracle.New(&cfg.Oracle, priceStore)
}

func provideReserveService(reserveStore core.IReserveStore) core.IReserveService {
	return reserveservice.New(reserveStore, cfg.Market.SecondsPerSequence)
}

func provideObligationService(
	obligationStore core.IObligationStore,
	reserveStore core.IReserveStore,
	priceSrv core.IPriceOracleService,
	validator core.IOracleValidator,
) core.IObligationService {
	return obligationservice.New(obligationStore, reserveStore, priceSrv, validator, &cfg.Market)
}

func provideLiquidationService(
	obligationStore core.IObligationStore,
	reserveStore core.IReserveStore,
	obligationSrv core.IObligationService,
	priceSrv core.IPriceOracleService,
	validator core.IOracleValidator,
) core.ILiquidationService {
	return liquidation.New(obligationStore, reserveStore, obligationSrv, priceSrv, validator, cfg.Market.SecondsPerSequence)
}
