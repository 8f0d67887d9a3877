package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultDexScreenerURL is the DexScreener API root.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

// DexScreener reports whether a token has an approved paid listing.
type DexScreener struct {
	client  *jsonClient
	baseURL string
}

// NewDexScreener creates a client. Empty baseURL means the public API.
func NewDexScreener(baseURL string, httpClient *http.Client) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreener{
		client:  newJSONClient(httpClient, 4, 4),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type dexOrder struct {
	Type             string `json:"type"`
	Status           string `json:"status"`
	PaymentTimestamp int64  `json:"paymentTimestamp"`
}

// IsPaid returns true when the first order for mint is approved.
func (d *DexScreener) IsPaid(ctx context.Context, mint string) (bool, error) {
	var orders []dexOrder
	if err := d.client.get(ctx, fmt.Sprintf("%s/orders/v1/solana/%s", d.baseURL, mint), &orders); err != nil {
		return false, fmt.Errorf("dexscreener orders: %w", err)
	}
	return len(orders) > 0 && orders[0].Status == "approved", nil
}
