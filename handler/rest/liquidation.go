package rest

import (
	"net/http"
	"time"

	"auralend/handler/param"
	"auralend/handler/render"

	"github.com/fox-one/pkg/store/db"
)

func liquidateHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			UserID          string `json:"user_id"`
			RepayAssetID    string `json:"repay_asset_id"`
			WithdrawAssetID string `json:"withdraw_asset_id"`
			Amount          uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		repayReserve, err := deps.ReserveStore.Find(ctx, params.RepayAssetID)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		withdrawReserve := repayReserve
		if params.WithdrawAssetID != params.RepayAssetID {
			withdrawReserve, err = deps.ReserveStore.Find(ctx, params.WithdrawAssetID)
			if err != nil {
				render.NotFoundRequest(w, err)
				return
			}
		}

		now := time.Now()
		sequence, err := deps.sequence(now)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		var result interface{}
		err = deps.Database.Tx(func(tx *db.DB) error {
			obligation, err := deps.ObligationStore.Find(ctx, params.UserID)
			if err != nil {
				return err
			}

			result, err = deps.LiquidationSrv.Liquidate(ctx, tx, obligation, repayReserve, withdrawReserve, params.Amount, sequence, now)
			return err
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, result)
	}
}
