package coincap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/config"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
)

// Fetcher is the snapshot side of the rates data: one-shot reads of the asset list,
// a single asset and its price history.
type Fetcher interface {
	GetAssets(ctx context.Context) (*models.AssetsResponse, error)
	GetAsset(ctx context.Context, id string) (*models.AssetResponse, error)
	GetAssetHistory(ctx context.Context, id string, interval models.Interval) (*models.AssetHistoryResponse, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.CoinCapConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) GetAssets(ctx context.Context) (*models.AssetsResponse, error) {
	var resp models.AssetsResponse
	if err := c.get(ctx, "/assets", nil, &resp); err != nil {
		c.log.Error("error fetching assets", "error", err)
		return nil, errs.ErrFetchAssets
	}

	return &resp, nil
}

func (c *Client) GetAsset(ctx context.Context, id string) (*models.AssetResponse, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: asset id is required", errs.ErrInvalidArgument)
	}

	var resp models.AssetResponse
	if err := c.get(ctx, "/assets/"+url.PathEscape(id), nil, &resp); err != nil {
		c.log.Error("error fetching asset", "id", id, "error", err)
		return nil, errs.ErrFetchAsset
	}

	return &resp, nil
}

func (c *Client) GetAssetHistory(ctx context.Context, id string, interval models.Interval) (*models.AssetHistoryResponse, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: asset id is required", errs.ErrInvalidArgument)
	}

	iv, err := models.ParseInterval(string(interval))
	if err != nil {
		return nil, err
	}

	query := url.Values{"interval": []string{string(iv)}}

	var resp models.AssetHistoryResponse
	if err := c.get(ctx, "/assets/"+url.PathEscape(id)+"/history", query, &resp); err != nil {
		c.log.Error("error fetching asset history", "id", id, "interval", iv, "error", err)
		return nil, errs.ErrFetchHistory
	}

	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	const op = "coincap.get"

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s returned %s: %s", op, path, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", op, path, err)
	}

	return nil
}
