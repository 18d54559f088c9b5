package models

import (
	"fmt"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/shopspring/decimal"
)

type Asset struct {
	ID                string  `json:"id"`
	Rank              string  `json:"rank"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	PriceUsd          string  `json:"priceUsd"`
	ChangePercent24Hr string  `json:"changePercent24Hr"`
	Supply            string  `json:"supply"`
	MaxSupply         *string `json:"maxSupply"`
	MarketCapUsd      string  `json:"marketCapUsd"`
	VolumeUsd24Hr     string  `json:"volumeUsd24Hr"`
	Vwap24Hr          string  `json:"vwap24Hr"`
}

// ChangePercent parses the 24h change, zero when the source sent no number.
func (a *Asset) ChangePercent() decimal.Decimal {
	d, err := decimal.NewFromString(a.ChangePercent24Hr)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type HistoryPoint struct {
	PriceUsd string `json:"priceUsd"`
	Time     int64  `json:"time"`
}

func (p HistoryPoint) Timestamp() time.Time {
	return time.UnixMilli(p.Time).UTC()
}

type AssetsResponse struct {
	Data      []Asset `json:"data"`
	Timestamp int64   `json:"timestamp"`
}

type AssetResponse struct {
	Data      Asset `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

type AssetHistoryResponse struct {
	Data      []HistoryPoint `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

type Interval string

const (
	IntervalMinute         Interval = "m1"
	IntervalFiveMinutes    Interval = "m5"
	IntervalFifteenMinutes Interval = "m15"
	IntervalThirtyMinutes  Interval = "m30"
	IntervalHour           Interval = "h1"
	IntervalTwoHours       Interval = "h2"
	IntervalSixHours       Interval = "h6"
	IntervalTwelveHours    Interval = "h12"
	IntervalDay            Interval = "d1"
)

const DefaultInterval = IntervalDay

func ParseInterval(raw string) (Interval, error) {
	if raw == "" {
		return DefaultInterval, nil
	}

	switch iv := Interval(raw); iv {
	case IntervalMinute, IntervalFiveMinutes, IntervalFifteenMinutes, IntervalThirtyMinutes,
		IntervalHour, IntervalTwoHours, IntervalSixHours, IntervalTwelveHours, IntervalDay:
		return iv, nil
	}

	return "", fmt.Errorf("%w: unknown interval %q", errs.ErrInvalidArgument, raw)
}
