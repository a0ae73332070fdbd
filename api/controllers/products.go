package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/api/responses"
	"github.com/trendora/trendora-backend/api/validators"
	productsvc "github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// ProductList serves the public catalog with filtering, sorting, and paging.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProductDetail serves a single active product.
func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func buildListParams(r *http.Request) (productsvc.ListParams, error) {
	var params productsvc.ListParams
	q := r.URL.Query()

	params.Query = strings.TrimSpace(q.Get("q"))
	params.Category = strings.TrimSpace(q.Get("category"))

	if raw := strings.TrimSpace(q.Get("gender")); raw != "" {
		gender, err := enums.ParseProductGender(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gender")
		}
		params.Gender = &gender
	}

	for _, raw := range q["size"] {
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				params.Sizes = append(params.Sizes, token)
			}
		}
	}

	minPrice, err := parseOptionalCents(q.Get("minPrice"), "minPrice")
	if err != nil {
		return params, err
	}
	params.MinPriceCents = minPrice

	maxPrice, err := parseOptionalCents(q.Get("maxPrice"), "maxPrice")
	if err != nil {
		return params, err
	}
	params.MaxPriceCents = maxPrice

	if params.MinPriceCents != nil && params.MaxPriceCents != nil && *params.MinPriceCents > *params.MaxPriceCents {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	params.InStockOnly = strings.EqualFold(strings.TrimSpace(q.Get("inStock")), "true")

	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		sort, err := enums.ParseProductSort(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort")
		}
		params.Sort = sort
	}
	params.SortDesc = strings.EqualFold(strings.TrimSpace(q.Get("order")), "desc")

	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<30)
	if err != nil {
		return params, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Page = pagination.Params{Page: page, Limit: limit}

	return params, nil
}

func parseOptionalCents(raw, field string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price filter must be a non-negative integer").WithDetails(map[string]any{"field": field})
	}
	return &value, nil
}

func parsePathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
