package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newRPCServer serves JSON-RPC requests with handle's result.
func newRPCServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["commitment"] != CommitmentConfirmed {
			t.Errorf("expected confirmed commitment, got %v", cfg["commitment"])
		}

		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":          nil,
				"fee":          5000,
				"logMessages":  []string{"Program log: Instruction: Buy"},
				"preBalances":  []uint64{2_000_000_000, 0},
				"postBalances": []uint64{1_799_995_000, 0},
				"preTokenBalances": []map[string]interface{}{
					{"accountIndex": 1, "mint": "mintA", "owner": "wallet",
						"uiTokenAmount": map[string]interface{}{"amount": "0", "decimals": 6, "uiAmount": nil}},
				},
				"postTokenBalances": []map[string]interface{}{
					{"accountIndex": 1, "mint": "mintA", "owner": "wallet",
						"uiTokenAmount": map[string]interface{}{"amount": "7105960264900", "decimals": 6, "uiAmount": 7105960.2649}},
				},
				"loadedAddresses": map[string]interface{}{
					"writable": []string{"addr3"},
					"readonly": []string{},
				},
			},
			"transaction": map[string]interface{}{
				"message": map[string]interface{}{
					"accountKeys": []string{"wallet", "ata"},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		t.Fatalf("expected populated transaction, got %+v", tx)
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.Meta.PreBalances[0]-tx.Meta.PostBalances[0] != 200_005_000 {
		t.Errorf("unexpected balance delta")
	}
	if len(tx.Meta.PostTokenBalances) != 1 || tx.Meta.PostTokenBalances[0].UITokenAmount.UI() != 7105960.2649 {
		t.Errorf("unexpected post token balances: %+v", tx.Meta.PostTokenBalances)
	}
	if tx.Meta.PreTokenBalances[0].UITokenAmount.UI() != 0 {
		t.Errorf("null ui amount should read as 0")
	}
	if len(tx.Message.AccountKeys) != 3 || tx.Message.AccountKeys[2] != "addr3" {
		t.Errorf("expected loaded addresses appended, got %v", tx.Message.AccountKeys)
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} { return nil })
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getMultipleAccounts" {
			t.Errorf("expected getMultipleAccounts, got %s", req.Method)
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": []interface{}{
				map[string]interface{}{"lamports": 10, "owner": "prog", "data": []string{data, "base64"}},
				nil,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}
	if infos[1] != nil {
		t.Errorf("expected nil for missing account")
	}
	raw, err := infos[0].DecodeData()
	if err != nil || len(raw) != 3 {
		t.Errorf("DecodeData: %v %v", raw, err)
	}

	if _, err := client.GetMultipleAccounts(context.Background(), []string{"a"}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestHTTPClient_GetTokenAccountsByOwner(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		sel, _ := req.Params[1].(map[string]interface{})
		if sel["programId"] != "tokenprog" {
			t.Errorf("expected programId filter, got %v", sel)
		}
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"pubkey": "acct1",
					"account": map[string]interface{}{
						"data": map[string]interface{}{
							"parsed": map[string]interface{}{
								"info": map[string]interface{}{
									"mint":  "mintA",
									"owner": "wallet",
									"tokenAmount": map[string]interface{}{
										"amount": "42", "decimals": 6, "uiAmount": 0.000042, "uiAmountString": "0.000042",
									},
								},
							},
						},
					},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accts, err := client.GetTokenAccountsByOwner(context.Background(), "wallet", TokenAccountsFilter{ProgramID: "tokenprog"})
	if err != nil {
		t.Fatalf("GetTokenAccountsByOwner: %v", err)
	}
	if len(accts) != 1 || accts[0].Mint != "mintA" || accts[0].Amount.Amount != "42" {
		t.Errorf("unexpected accounts: %+v", accts)
	}

	if _, err := client.GetTokenAccountsByOwner(context.Background(), "wallet", TokenAccountsFilter{}); err == nil {
		t.Error("expected error for empty filter")
	}
}

func TestHTTPClient_PrioritizationFeesAndBlockhash(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		switch req.Method {
		case "getRecentPrioritizationFees":
			return []map[string]interface{}{
				{"slot": 10, "prioritizationFee": 1500},
				{"slot": 11, "prioritizationFee": 0},
			}
		case "getLatestBlockhash":
			return map[string]interface{}{
				"value": map[string]interface{}{"blockhash": "hash123", "lastValidBlockHeight": 99},
			}
		case "getBalance":
			return map[string]interface{}{"value": 1_500_000_000}
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	fees, err := client.GetRecentPrioritizationFees(ctx, nil)
	if err != nil || len(fees) != 2 || fees[0].PrioritizationFee != 1500 {
		t.Errorf("GetRecentPrioritizationFees: %+v %v", fees, err)
	}

	hash, err := client.GetLatestBlockhash(ctx, CommitmentFinalized)
	if err != nil || hash != "hash123" {
		t.Errorf("GetLatestBlockhash: %q %v", hash, err)
	}

	bal, err := client.GetBalance(ctx, "wallet")
	if err != nil || bal != 1_500_000_000 {
		t.Errorf("GetBalance: %d %v", bal, err)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("expected base64 payload, got %v", req.Params[0])
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["skipPreflight"] != true || cfg["preflightCommitment"] != CommitmentProcessed {
			t.Errorf("unexpected send config %v", cfg)
		}
		return "sig111"
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), raw)
	if err != nil || sig != "sig111" {
		t.Errorf("SendTransaction: %q %v", sig, err)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": 999},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var mu sync.Mutex
	var observed []string
	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithObserver(func(method string, _ time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				observed = append(observed, method)
			}
		}),
	)

	bal, err := client.GetBalance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != 999 {
		t.Errorf("expected balance 999, got %d", bal)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if len(observed) != 1 || observed[0] != "getBalance" {
		t.Errorf("expected one observed call, got %v", observed)
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.GetBalance(context.Background(), "wallet")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBalance(ctx, "wallet")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
