package esi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// AdjustedPricesTTL is how long the CCP adjusted price list is cached.
const AdjustedPricesTTL = 30 * time.Minute

// ESI caps /universe/ids/ at 500 names per request.
const idsBatchSize = 500

// IndustryPrice holds adjusted_price and average_price for one type.
type IndustryPrice struct {
	TypeID        int32   `json:"type_id"`
	AdjustedPrice float64 `json:"adjusted_price"`
	AveragePrice  float64 `json:"average_price"`
}

// Client talks to the public ESI endpoints used by the production pipeline.
type Client struct {
	transport
	cache *cache.Cache
	group singleflight.Group
}

// NewClient creates an ESI client. Options.BaseURL defaults to DefaultESIBase.
func NewClient(opts Options) *Client {
	return &Client{
		transport: newTransport(opts, DefaultESIBase),
		cache:     cache.New(AdjustedPricesTTL, 2*AdjustedPricesTTL),
	}
}

// FetchMarketPrices fetches adjusted and average prices for all types.
func (c *Client) FetchMarketPrices(ctx context.Context) ([]IndustryPrice, error) {
	var result []IndustryPrice
	url := c.base + "/markets/prices/?datasource=tranquility"
	if _, err := c.fetchJSON(ctx, http.MethodGet, url, nil, &result, false); err != nil {
		return nil, fmt.Errorf("fetch market prices: %w", err)
	}
	return result, nil
}

// AdjustedPrices returns typeID -> adjusted price. Concurrent callers share one fetch
// and the result is cached for AdjustedPricesTTL.
func (c *Client) AdjustedPrices(ctx context.Context) (map[int32]float64, error) {
	if v, ok := c.cache.Get("adjusted"); ok {
		return v.(map[int32]float64), nil
	}
	v, err, _ := c.group.Do("adjusted", func() (interface{}, error) {
		prices, err := c.FetchMarketPrices(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[int32]float64, len(prices))
		for _, p := range prices {
			m[p.TypeID] = p.AdjustedPrice
		}
		c.cache.SetDefault("adjusted", m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int32]float64), nil
}

type idsResponse struct {
	InventoryTypes []struct {
		ID   int32  `json:"id"`
		Name string `json:"name"`
	} `json:"inventory_types"`
}

// TypeIDs resolves exact item names to type IDs. Unknown names are absent from the result.
func (c *Client) TypeIDs(ctx context.Context, names []string) (map[string]int32, error) {
	out := make(map[string]int32, len(names))
	for start := 0; start < len(names); start += idsBatchSize {
		end := start + idsBatchSize
		if end > len(names) {
			end = len(names)
		}
		var resp idsResponse
		url := c.base + "/universe/ids/?datasource=tranquility"
		if _, err := c.fetchJSON(ctx, http.MethodPost, url, names[start:end], &resp, false); err != nil {
			return nil, fmt.Errorf("resolve type ids: %w", err)
		}
		for _, t := range resp.InventoryTypes {
			out[t.Name] = t.ID
		}
	}
	return out, nil
}

// TypeVolume returns the volume (m³) of a type.
func (c *Client) TypeVolume(ctx context.Context, typeID int32) (float64, error) {
	var info struct {
		Volume float64 `json:"volume"`
	}
	url := fmt.Sprintf("%s/universe/types/%d/?datasource=tranquility", c.base, typeID)
	if _, err := c.fetchJSON(ctx, http.MethodGet, url, nil, &info, false); err != nil {
		return 0, fmt.Errorf("type %d volume: %w", typeID, err)
	}
	return info.Volume, nil
}

// TypeNames resolves type IDs to names. When ESI rejects the batch every ID maps to
// its decimal string so callers still get a label.
func (c *Client) TypeNames(ctx context.Context, ids []int32) (map[int32]string, error) {
	seen := make(map[int32]bool, len(ids))
	clean := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}
	if len(clean) == 0 {
		return map[int32]string{}, nil
	}
	sort.Slice(clean, func(i, j int) bool { return clean[i] < clean[j] })

	var resp []struct {
		ID   int32  `json:"id"`
		Name string `json:"name"`
	}
	url := c.base + "/universe/names/?datasource=tranquility"
	ok, err := c.fetchJSON(ctx, http.MethodPost, url, clean, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("resolve type names: %w", err)
	}
	out := make(map[int32]string, len(clean))
	if !ok {
		for _, id := range clean {
			out[id] = strconv.Itoa(int(id))
		}
		return out, nil
	}
	for _, r := range resp {
		out[r.ID] = r.Name
	}
	return out, nil
}
