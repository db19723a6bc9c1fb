// Package chain provides EVM blockchain interaction for packmint: contract
// reads, transaction receipts, and historical log queries over JSON-RPC.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// ErrNotFound reports a resource the node does not know yet, such as the
// receipt of a pending transaction.
var ErrNotFound = errors.New("not found")

// Client is a rate-limited JSON-RPC client against an EVM node.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config holds client configuration.
type Config struct {
	RPCURL            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewClient creates a new EVM RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}, nil
}

// Call makes a raw RPC call to the node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// BlockNumber returns the current head block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}

	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(hex)
}

type callMsg struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// CallContract executes a read-only contract call at the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	result, err := c.Call(ctx, "eth_call", []interface{}{callMsg{To: to, Data: data}, "latest"})
	if err != nil {
		return nil, err
	}

	var out hexutil.Bytes
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type logFilter struct {
	Address   common.Address `json:"address"`
	FromBlock string         `json:"fromBlock"`
	ToBlock   string         `json:"toBlock"`
	Topics    []common.Hash  `json:"topics,omitempty"`
}

// Logs returns logs emitted by the given contract in [fromBlock, latest],
// optionally filtered by first topic.
func (c *Client) Logs(ctx context.Context, address common.Address, fromBlock uint64, topic0 *common.Hash) ([]types.Log, error) {
	filter := logFilter{
		Address:   address,
		FromBlock: hexutil.EncodeUint64(fromBlock),
		ToBlock:   "latest",
	}
	if topic0 != nil {
		filter.Topics = []common.Hash{*topic0}
	}

	result, err := c.Call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, err
	}

	var logs []types.Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ErrNotFound while it is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, ErrNotFound
	}

	var receipt types.Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
