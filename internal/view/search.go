package view

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/coincap"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/format"
)

const MsgSearchFailed = "Error fetching data. Please try again."

type SearchView struct {
	fetcher coincap.Fetcher
	log     *slog.Logger
}

func NewSearchView(fetcher coincap.Fetcher, log *slog.Logger) *SearchView {
	return &SearchView{
		fetcher: fetcher,
		log:     log,
	}
}

// Search matches query against asset names. An empty query lists everything.
func (v *SearchView) Search(ctx context.Context, query string) (models.SearchState, error) {
	state := models.SearchState{
		Query:   query,
		Results: []models.SearchResult{},
	}

	resp, err := v.fetcher.GetAssets(ctx)
	if err != nil {
		v.log.Warn("search: asset list unavailable", "error", err)
		state.Error = MsgSearchFailed
		return state, err
	}

	for _, a := range Filter(resp.Data, query) {
		state.Results = append(state.Results, models.SearchResult{
			ID:     a.ID,
			Name:   a.Name,
			Symbol: a.Symbol,
			Price:  format.USD(a.PriceUsd),
			Icon:   iconPath(a.Symbol),
		})
	}
	state.NoResults = query != "" && len(state.Results) == 0

	return state, nil
}

// Filter keeps assets whose name contains query, ignoring case, in their original order.
func Filter(assets []models.Asset, query string) []models.Asset {
	if query == "" {
		return assets
	}

	needle := strings.ToLower(query)
	matched := make([]models.Asset, 0)
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			matched = append(matched, a)
		}
	}

	return matched
}
