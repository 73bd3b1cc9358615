package rest

import (
	"context"
	"net/http"
	"time"

	"auralend/core"
	"auralend/handler/param"
	"auralend/handler/render"
	"auralend/handler/views"
	"auralend/pkg/number"

	"github.com/fox-one/pkg/store/db"
	"github.com/go-chi/chi"
	"github.com/jinzhu/gorm"
)

func obligationHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obligation, err := deps.ObligationStore.Find(r.Context(), chi.URLParam(r, "user_id"))
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		render.JSON(w, obligationView(obligation))
	}
}

func refreshObligationHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		now := time.Now()
		sequence, err := deps.sequence(now)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		userID := chi.URLParam(r, "user_id")
		var obligation *core.Obligation
		err = deps.Database.Tx(func(tx *db.DB) error {
			var err error
			if obligation, err = deps.ObligationStore.Find(ctx, userID); err != nil {
				return err
			}

			return deps.ObligationSrv.Refresh(ctx, tx, obligation, sequence, now)
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, obligationView(obligation))
	}
}

func depositCollateralHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			AssetID string `json:"asset_id"`
			Amount  uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, params.AssetID)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		now := time.Now()
		sequence, err := deps.sequence(now)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		userID := chi.URLParam(r, "user_id")
		err = deps.Database.Tx(func(tx *db.DB) error {
			obligation, err := findOrCreateObligation(ctx, tx, deps, userID)
			if err != nil {
				return err
			}

			return deps.ObligationSrv.DepositCollateral(ctx, tx, obligation, reserve, params.Amount, sequence, now)
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"status": "ok"})
	}
}

func withdrawCollateralHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			AssetID string `json:"asset_id"`
			Amount  uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, params.AssetID)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		now := time.Now()
		sequence, err := deps.sequence(now)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		userID := chi.URLParam(r, "user_id")
		err = deps.Database.Tx(func(tx *db.DB) error {
			obligation, err := deps.ObligationStore.Find(ctx, userID)
			if err != nil {
				return err
			}

			return deps.ObligationSrv.WithdrawCollateral(ctx, tx, obligation, reserve, params.Amount, sequence, now)
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"status": "ok"})
	}
}

func borrowHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			AssetID string `json:"asset_id"`
			Amount  uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, params.AssetID)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		now := time.Now()
		sequence, err := deps.sequence(now)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		userID := chi.URLParam(r, "user_id")
		err = deps.Database.Tx(func(tx *db.DB) error {
			obligation, err := deps.ObligationStore.Find(ctx, userID)
			if err != nil {
				return err
			}

			return deps.ObligationSrv.Borrow(ctx, tx, obligation, reserve, params.Amount, sequence, now)
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"status": "ok"})
	}
}

func repayHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			AssetID string `json:"asset_id"`
			Amount  uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, params.AssetID)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		sequence, err := deps.sequence(time.Now())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		userID := chi.URLParam(r, "user_id")
		var applied uint64
		err = deps.Database.Tx(func(tx *db.DB) error {
			obligation, err := deps.ObligationStore.Find(ctx, userID)
			if err != nil {
				return err
			}

			applied, err = deps.ObligationSrv.Repay(ctx, tx, obligation, reserve, params.Amount, sequence)
			return err
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"repaid_amount": applied})
	}
}

func findOrCreateObligation(ctx context.Context, tx *db.DB, deps Deps, userID string) (*core.Obligation, error) {
	obligation, err := deps.ObligationStore.Find(ctx, userID)
	if gorm.IsRecordNotFoundError(err) {
		obligation = &core.Obligation{UserID: userID}
		if err := deps.ObligationStore.Save(ctx, tx, obligation); err != nil {
			return nil, err
		}
		return obligation, nil
	}
	if err != nil {
		return nil, err
	}

	return obligation, nil
}

func obligationView(obligation *core.Obligation) *views.Obligation {
	view := &views.Obligation{Obligation: *obligation}

	factor, err := obligation.HealthFactor()
	if err == nil {
		view.HealthFactor = factor.ToDecimal()
		view.Liquidatable = factor.LessThan(number.One()) && obligation.HasDebts()
	}

	if maxBorrow, err := obligation.MaxBorrowValue(); err == nil {
		view.MaxBorrowValue = maxBorrow.ToDecimal()
	}

	return view
}
