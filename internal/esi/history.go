package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MarketStatsTTL is how long per-type EVE Tycoon statistics are cached.
const MarketStatsTTL = 5 * time.Minute

// MarketStats mirrors the EVE Tycoon /stats response for one type in one region.
// The five-percent averages are nil when the API omits them.
type MarketStats struct {
	BuyVolume          int64    `json:"buyVolume"`
	SellVolume         int64    `json:"sellVolume"`
	BuyOrders          int64    `json:"buyOrders"`
	SellOrders         int64    `json:"sellOrders"`
	BuyOutliers        int64    `json:"buyOutliers"`
	SellOutliers       int64    `json:"sellOutliers"`
	BuyThreshold       float64  `json:"buyThreshold"`
	SellThreshold      float64  `json:"sellThreshold"`
	BuyAvgFivePercent  *float64 `json:"buyAvgFivePercent"`
	SellAvgFivePercent *float64 `json:"sellAvgFivePercent"`
}

// HistoryDate accepts either an ISO date string or epoch milliseconds.
type HistoryDate struct {
	time.Time
}

func (d *HistoryDate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognised history date %q", s)
}

func (d HistoryDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// HistoryEntry is a single day of market history for an item in a region.
type HistoryEntry struct {
	Date       HistoryDate `json:"date"`
	Average    float64     `json:"average"`
	Highest    float64     `json:"highest"`
	Lowest     float64     `json:"lowest"`
	Volume     int64       `json:"volume"`
	OrderCount int64       `json:"orderCount"`
}

// TycoonClient reads aggregated market data from EVE Tycoon.
type TycoonClient struct {
	transport
	cache *cache.Cache
}

// NewTycoonClient creates a client. Options.BaseURL defaults to DefaultTycoonBase.
func NewTycoonClient(opts Options) *TycoonClient {
	return &TycoonClient{
		transport: newTransport(opts, DefaultTycoonBase),
		cache:     cache.New(MarketStatsTTL, 2*MarketStatsTTL),
	}
}

// MarketStats fetches order-book statistics for a type. A non-200 answer means the
// source has no data for the type and yields (nil, nil).
func (c *TycoonClient) MarketStats(ctx context.Context, regionID, typeID int32) (*MarketStats, error) {
	key := fmt.Sprintf("stats:%d:%d", regionID, typeID)
	if v, ok := c.cache.Get(key); ok {
		return v.(*MarketStats), nil
	}

	var stats MarketStats
	url := fmt.Sprintf("%s/stats/%d/%d", c.base, regionID, typeID)
	ok, err := c.fetchJSON(ctx, http.MethodGet, url, nil, &stats, true)
	if err != nil {
		return nil, fmt.Errorf("market stats %d/%d: %w", regionID, typeID, err)
	}
	if !ok {
		return nil, nil
	}
	c.cache.SetDefault(key, &stats)
	return &stats, nil
}

// History fetches daily price history for a type, oldest first. Like MarketStats,
// a non-200 answer yields (nil, nil).
func (c *TycoonClient) History(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	url := fmt.Sprintf("%s/history/%d/%d", c.base, regionID, typeID)
	ok, err := c.fetchJSON(ctx, http.MethodGet, url, nil, &entries, true)
	if err != nil {
		return nil, fmt.Errorf("market history %d/%d: %w", regionID, typeID, err)
	}
	if !ok {
		return nil, nil
	}
	// Not guaranteed chronological.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date.Time)
	})
	return entries, nil
}
