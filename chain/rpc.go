package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/utxoforge/libledger-go/tx"
)

// RPCClient speaks JSON-RPC 1.0 to a ledger node over HTTP. It implements
// the Client interface the engine consumes; every Client method routes
// through Call, which owns encoding, authentication, and error shaping.
type RPCClient struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Int64
}

// Compile-time interface check.
var _ Client = (*RPCClient)(nil)

// rpcRequest is the wire shape of one call to the node.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is the node's reply, carrying either a result or an error.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError is a structured failure reported by the node itself.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCClient returns a client that talks to the ledger node described by
// cfg. Basic Auth is attached to every request when cfg.User is set, and the
// underlying HTTP transport keeps connections alive across calls.
func NewRPCClient(cfg RPCConfig) *RPCClient {
	return &RPCClient{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Call issues a single named call against the node and decodes the reply
// into result. A nil params slice is sent as an empty array, and a nil
// result discards the node's payload.
//
// Call distinguishes failure layers for its callers: ErrConnectionFailed
// means the node was never reached, ErrInvalidResponse means the node
// answered with something that could not be decoded, and an error reported
// by the node itself is returned as a plain error carrying its message.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("chain: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}

	if rpcResp.ID != reqBody.ID {
		return fmt.Errorf("%w: response ID mismatch: expected %d, got %d",
			ErrInvalidResponse, reqBody.ID, rpcResp.ID)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("chain: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %w", ErrInvalidResponse, err)
		}
	}

	return nil
}

// utxoResult maps the JSON fields returned by the node's getutxos call.
type utxoResult struct {
	TxID        string            `json:"txid"`
	OutputIndex uint32            `json:"output_index"`
	Address     string            `json:"address"`
	Value       uint64            `json:"value"`
	Tokens      map[string]uint64 `json:"tokens"`
	DatumHash   string            `json:"datum_hash"`
}

// GetUTXOs returns all unspent transaction outputs for the given address.
func (c *RPCClient) GetUTXOs(ctx context.Context, address string) ([]tx.UTXO, error) {
	var results []utxoResult
	if err := c.Call(ctx, "getutxos", []interface{}{address}, &results); err != nil {
		return nil, err
	}

	utxos := make([]tx.UTXO, len(results))
	for i, r := range results {
		utxos[i] = tx.UTXO{
			TxID:        r.TxID,
			OutputIndex: r.OutputIndex,
			Address:     r.Address,
			Value:       r.Value,
			Tokens:      r.Tokens,
			DatumHash:   r.DatumHash,
		}
	}
	return utxos, nil
}

// SubmitTx submits a hex-encoded signed transaction to the node via the
// submittx call. A node-side rejection surfaces as ErrBroadcastRejected
// with the node's reason preserved verbatim. Transport errors pass through
// unwrapped: if the node was never reached the transaction was not rejected
// and the caller may retry.
func (c *RPCClient) SubmitTx(ctx context.Context, signedTx []byte) (string, error) {
	var txHash string
	err := c.Call(ctx, "submittx", []interface{}{hex.EncodeToString(signedTx)}, &txHash)
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrInvalidResponse) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	if txHash == "" {
		return "", fmt.Errorf("%w: empty transaction hash", ErrInvalidResponse)
	}
	log.Debugf("submitted transaction %s", txHash)
	return txHash, nil
}

// txStatusResult maps the JSON fields returned by the node's txstatus call.
type txStatusResult struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
}

// IsConfirmed reports whether the transaction with the given hash is final.
func (c *RPCClient) IsConfirmed(ctx context.Context, txHash string) (bool, error) {
	var result txStatusResult
	if err := c.Call(ctx, "txstatus", []interface{}{txHash}, &result); err != nil {
		return false, err
	}
	return result.Confirmed, nil
}
