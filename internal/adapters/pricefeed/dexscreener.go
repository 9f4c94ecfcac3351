package pricefeed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"solTradeBot/internal/adapters/httpjson"
	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// USDReference converts dollar quotes into SOL.
type USDReference interface {
	SOLPriceUSD(ctx context.Context) (float64, error)
}

// DexScreenerSource quotes tokens from the deepest Solana pair DexScreener reports.
// Pairs quoted against SOL use the native price; other pairs go through the USD reference.
type DexScreenerSource struct {
	baseURL string
	client  *httpjson.Client
	usd     USDReference // nil restricts the source to SOL-quoted pairs
}

func NewDexScreenerSource(baseURL string, client *httpjson.Client, usd USDReference) *DexScreenerSource {
	return &DexScreenerSource{baseURL: strings.TrimRight(baseURL, "/"), client: client, usd: usd}
}

func (s *DexScreenerSource) Name() string { return "dexscreener" }

type dexPair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
	} `json:"quoteToken"`
	PriceNative string `json:"priceNative"`
	PriceUSD    string `json:"priceUsd"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

func (s *DexScreenerSource) Price(ctx context.Context, token string) (float64, error) {
	var resp dexResponse
	if err := s.client.Get(ctx, s.baseURL+"/"+token, &resp); err != nil {
		return 0, fmt.Errorf("dexscreener price %s: %w", token, err)
	}

	var best *dexPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != "solana" || p.BaseToken.Address != token {
			continue
		}
		if p.QuoteToken.Address != domain.BaseAssetMint && s.usd == nil {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return 0, fmt.Errorf("dexscreener has no usable pair for %s: %w", token, ports.ErrPriceUnavailable)
	}

	if best.QuoteToken.Address == domain.BaseAssetMint {
		return parsePrice(best.PriceNative)
	}

	usd, err := parsePrice(best.PriceUSD)
	if err != nil {
		return 0, err
	}
	solUSD, err := s.usd.SOLPriceUSD(ctx)
	if err != nil {
		return 0, fmt.Errorf("SOL/USD reference: %w", err)
	}
	return usd / solUSD, nil
}

func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w: %w", raw, ports.ErrInvalidResponse, err)
	}
	return price, nil
}
