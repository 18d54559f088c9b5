package models

// Prices is one feed frame: asset id to latest price text.
type Prices map[string]string

type AssetCard struct {
	ID            string `json:"id"`
	Rank          string `json:"rank"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	ChangePercent string `json:"changePercent"`
	IsPositive    bool   `json:"isPositive"`
	Icon          string `json:"icon"`
}

type ListState struct {
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
	Status  string      `json:"status"`
	Cards   []AssetCard `json:"cards"`
}

type AssetDetail struct {
	AssetCard
	Supply    string `json:"supply"`
	MaxSupply string `json:"maxSupply"`
	MarketCap string `json:"marketCap"`
	Volume24h string `json:"volume24h"`
	Vwap24h   string `json:"vwap24h"`
}

type DetailState struct {
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
	Status  string         `json:"status"`
	Asset   *AssetDetail   `json:"asset,omitempty"`
	History []HistoryPoint `json:"history"`
}

type SearchResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Icon   string `json:"icon"`
}

type SearchState struct {
	Query     string         `json:"query"`
	Error     string         `json:"error,omitempty"`
	NoResults bool           `json:"noResults"`
	Results   []SearchResult `json:"results"`
}
