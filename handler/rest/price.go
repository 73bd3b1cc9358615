package rest

import (
	"net/http"

	"auralend/core"
	"auralend/handler/render"

	"github.com/go-chi/chi"
)

func allPricesHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prices, err := deps.PriceStore.All(r.Context())
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		render.JSON(w, prices)
	}
}

func priceHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		price, err := deps.PriceStore.Find(r.Context(), chi.URLParam(r, "feed_id"))
		if err != nil {
			render.BadRequest(w, err)
			return
		}
		if price.ID == 0 {
			render.NotFoundRequest(w, core.ErrPriceInvalid)
			return
		}

		render.JSON(w, price)
	}
}
