package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"solTradeBot/internal/adapters/httpjson"
	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// Source is one upstream quote provider. Prices are SOL per token unit.
type Source interface {
	Name() string
	Price(ctx context.Context, token string) (float64, error)
}

// JupiterSource quotes tokens through the Jupiter price API, priced directly against SOL.
type JupiterSource struct {
	baseURL string
	client  *httpjson.Client
}

func NewJupiterSource(baseURL string, client *httpjson.Client) *JupiterSource {
	return &JupiterSource{baseURL: baseURL, client: client}
}

func (s *JupiterSource) Name() string { return "jupiter" }

type jupiterResponse struct {
	Data map[string]*struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

func (s *JupiterSource) Price(ctx context.Context, token string) (float64, error) {
	q := url.Values{}
	q.Set("ids", token)
	q.Set("vsToken", domain.BaseAssetMint)

	var resp jupiterResponse
	if err := s.client.Get(ctx, s.baseURL+"?"+q.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("jupiter price %s: %w", token, err)
	}
	entry := resp.Data[token]
	if entry == nil || entry.Price == "" {
		return 0, fmt.Errorf("jupiter has no quote for %s: %w", token, ports.ErrPriceUnavailable)
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter price %q: %w: %w", entry.Price, ports.ErrInvalidResponse, err)
	}
	return price, nil
}
