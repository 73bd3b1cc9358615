package rest

import (
	"errors"
	"net/http"
	"time"

	"auralend/core"
	"auralend/handler/param"
	"auralend/handler/render"
	"auralend/handler/views"

	"github.com/fox-one/pkg/store/db"
	"github.com/go-chi/chi"
)

func allReservesHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reserves, err := deps.ReserveStore.All(r.Context())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		reserveViews := make([]*views.Reserve, 0, len(reserves))
		for _, reserve := range reserves {
			reserveViews = append(reserveViews, reserveView(reserve))
		}

		render.JSON(w, reserveViews)
	}
}

func reserveHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reserve, err := deps.ReserveStore.Find(r.Context(), chi.URLParam(r, "asset_id"))
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		render.JSON(w, reserveView(reserve))
	}
}

func refreshReserveHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reserve, err := deps.ReserveStore.Find(ctx, chi.URLParam(r, "asset_id"))
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		sequence, err := deps.sequence(time.Now())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		err = deps.Database.Tx(func(tx *db.DB) error {
			return deps.ReserveSrv.Refresh(ctx, tx, reserve, sequence)
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, reserveView(reserve))
	}
}

func depositHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			Amount uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, chi.URLParam(r, "asset_id"))
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		sequence, err := deps.sequence(time.Now())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		var minted uint64
		err = deps.Database.Tx(func(tx *db.DB) error {
			var err error
			minted, err = deps.ReserveSrv.Deposit(ctx, tx, reserve, params.Amount, sequence)
			return err
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"collateral_amount": minted})
	}
}

func redeemHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var params struct {
			Amount uint64 `json:"amount"`
		}
		if err := param.Binding(r, &params); err != nil {
			render.BadRequest(w, err)
			return
		}

		reserve, err := deps.ReserveStore.Find(ctx, chi.URLParam(r, "asset_id"))
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}

		sequence, err := deps.sequence(time.Now())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		var amount uint64
		err = deps.Database.Tx(func(tx *db.DB) error {
			var err error
			amount, err = deps.ReserveSrv.Redeem(ctx, tx, reserve, params.Amount, sequence)
			return err
		})
		if err != nil {
			renderServiceError(w, err)
			return
		}

		render.JSON(w, render.H{"amount": amount})
	}
}

func reserveView(reserve *core.Reserve) *views.Reserve {
	view := &views.Reserve{Reserve: *reserve}

	if rate, err := reserve.ExchangeRate(); err == nil {
		view.ExchangeRate = rate.ToDecimal()
	}
	view.BorrowAPY = reserve.BorrowRate.ToDecimal()
	view.SupplyAPY = reserve.SupplyRate.ToDecimal()
	view.Utilization = reserve.UtilizationRate.ToDecimal()

	return view
}

func renderServiceError(w http.ResponseWriter, err error) {
	var code core.ErrorCode
	if errors.As(err, &code) {
		render.Error(w, http.StatusBadRequest, int(code), err)
		return
	}

	render.BadRequest(w, err)
}
