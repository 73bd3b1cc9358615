package rest

import (
	"errors"
	"net/http"
	"time"

	"auralend/core"
	"auralend/handler/render"
	"auralend/internal/auralend"

	"github.com/fox-one/pkg/store/db"
	"github.com/go-chi/chi"
)

// Deps everything the rest api needs
type Deps struct {
	Config          *core.Config
	Database        *db.DB
	ReserveStore    core.IReserveStore
	ObligationStore core.IObligationStore
	PriceStore      core.IPriceStore
	ReserveSrv      core.IReserveService
	ObligationSrv   core.IObligationService
	LiquidationSrv  core.ILiquidationService
}

// Handle handle rest api request
func Handle(deps Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(render.WrapResponse(true))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.NotFoundRequest(w, errors.New("not found"))
	})

	router.Get("/reserves/all", allReservesHandler(deps))
	router.Get("/reserves/{asset_id}", reserveHandler(deps))
	router.Post("/reserves/{asset_id}/refresh", refreshReserveHandler(deps))
	router.Post("/reserves/{asset_id}/deposit", depositHandler(deps))
	router.Post("/reserves/{asset_id}/redeem", redeemHandler(deps))

	router.Get("/obligations/{user_id}", obligationHandler(deps))
	router.Post("/obligations/{user_id}/refresh", refreshObligationHandler(deps))
	router.Post("/obligations/{user_id}/collateral", depositCollateralHandler(deps))
	router.Post("/obligations/{user_id}/collateral/withdraw", withdrawCollateralHandler(deps))
	router.Post("/obligations/{user_id}/borrow", borrowHandler(deps))
	router.Post("/obligations/{user_id}/repay", repayHandler(deps))

	router.Post("/liquidations", liquidateHandler(deps))

	router.Get("/prices/all", allPricesHandler(deps))
	router.Get("/prices/{feed_id}", priceHandler(deps))

	return router
}

// sequence the clock position every state-changing request is stamped
// with
func (d Deps) sequence(now time.Time) (uint64, error) {
	return auralend.CurrentSequence(now, d.Config.Market.Genesis, d.Config.Market.SecondsPerSequence)
}
