// Package solanarpc reads token holder counts over Solana JSON-RPC.
package solanarpc

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"solTradeBot/internal/adapters/httpjson"
	"solTradeBot/internal/ports"
)

const (
	tokenProgramID   = "TokenkegQfeZyiNwAdyHwd5WZQ8N2P4xtGWLTAoYKr"
	tokenAccountSize = 165
	amountOffset     = 64 // mint(32) + owner(32)
)

// HolderCounter counts SPL token accounts with a non-zero balance for a mint.
// Results are cached per mint for ttl.
type HolderCounter struct {
	url    string
	client *httpjson.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedCount
}

type cachedCount struct {
	holders int
	at      time.Time
}

func NewHolderCounter(url string, client *httpjson.Client, ttl time.Duration) *HolderCounter {
	return &HolderCounter{url: url, client: client, ttl: ttl, now: time.Now, cache: make(map[string]cachedCount)}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result []struct {
		Account struct {
			Data []string `json:"data"` // [payload, encoding]
		} `json:"account"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HolderCounter) HolderCount(ctx context.Context, mint string) (int, error) {
	h.mu.Lock()
	if c, ok := h.cache[mint]; ok && h.now().Sub(c.at) < h.ttl {
		h.mu.Unlock()
		return c.holders, nil
	}
	h.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getProgramAccounts",
		Params: []interface{}{
			tokenProgramID,
			map[string]interface{}{
				"encoding":  "base64",
				"dataSlice": map[string]int{"offset": amountOffset, "length": 8},
				"filters": []interface{}{
					map[string]int{"dataSize": tokenAccountSize},
					map[string]interface{}{"memcmp": map[string]interface{}{"offset": 0, "bytes": mint}},
				},
			},
		},
	}

	var resp rpcResponse
	if err := h.client.Post(ctx, h.url, req, &resp); err != nil {
		return 0, fmt.Errorf("getProgramAccounts %s: %w: %w", mint, ports.ErrHoldersUnknown, err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getProgramAccounts %s: rpc error %d %s: %w", mint, resp.Error.Code, resp.Error.Message, ports.ErrHoldersUnknown)
	}

	holders := 0
	for _, acc := range resp.Result {
		if len(acc.Account.Data) == 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(acc.Account.Data[0])
		if err != nil || len(raw) < 8 {
			continue
		}
		if binary.LittleEndian.Uint64(raw) > 0 {
			holders++
		}
	}

	h.mu.Lock()
	h.cache[mint] = cachedCount{holders: holders, at: h.now()}
	h.mu.Unlock()
	return holders, nil
}
