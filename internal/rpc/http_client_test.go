package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

// newRPCServer returns a JSON-RPC test server answering with handler's result.
func newRPCServer(t *testing.T, wantMethod string, handler func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if req.Method != wantMethod {
			t.Errorf("expected method %s, got %s", wantMethod, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testSignature(b byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = b
	}
	return sig
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	want := solana.Hash(solana.SystemProgramID)

	server := newRPCServer(t, "getLatestBlockhash", func(req rpcRequest) interface{} {
		cfg, ok := req.Params[0].(map[string]interface{})
		if !ok || cfg["commitment"] != "finalized" {
			t.Errorf("expected finalized commitment, got %v", req.Params)
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"blockhash":            want.String(),
				"lastValidBlockHeight": 200,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL, WithCommitment(CommitmentFinalized))

	got, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestHTTPClient_RequestAirdrop(t *testing.T) {
	sig := testSignature(7)
	account := solana.SystemProgramID

	server := newRPCServer(t, "requestAirdrop", func(req rpcRequest) interface{} {
		if req.Params[0] != account.String() {
			t.Errorf("unexpected account %v", req.Params[0])
		}
		if req.Params[1] != float64(2*solana.LAMPORTS_PER_SOL) {
			t.Errorf("unexpected lamports %v", req.Params[1])
		}
		return sig.String()
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	got, err := client.RequestAirdrop(context.Background(), account, 2*solana.LAMPORTS_PER_SOL)
	if err != nil {
		t.Fatalf("RequestAirdrop: %v", err)
	}
	if got != sig {
		t.Errorf("expected %s, got %s", sig, got)
	}
}

func TestHTTPClient_GetMinimumBalanceForRentExemption(t *testing.T) {
	server := newRPCServer(t, "getMinimumBalanceForRentExemption", func(req rpcRequest) interface{} {
		if req.Params[0] != float64(82) {
			t.Errorf("unexpected size %v", req.Params[0])
		}
		return uint64(1461600)
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	lamports, err := client.GetMinimumBalanceForRentExemption(context.Background(), 82)
	if err != nil {
		t.Fatalf("GetMinimumBalanceForRentExemption: %v", err)
	}
	if lamports != 1461600 {
		t.Errorf("expected 1461600, got %d", lamports)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	payer, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}

	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer.PublicKey(), true, true),
	}, []byte("hello"))

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	server := newRPCServer(t, "sendTransaction", func(req rpcRequest) interface{} {
		encoded, _ := req.Params[0].(string)
		if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
			t.Errorf("transaction is not base64: %v", err)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" {
			t.Errorf("expected base64 encoding, got %v", cfg["encoding"])
		}
		return tx.Signatures[0].String()
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	sig, err := client.SendTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != tx.Signatures[0] {
		t.Errorf("expected %s, got %s", tx.Signatures[0], sig)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	known := testSignature(1)
	unknown := testSignature(2)

	server := newRPCServer(t, "getSignatureStatuses", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 99},
			"value": []interface{}{
				map[string]interface{}{
					"slot":               int64(98),
					"confirmations":      int64(1),
					"err":                nil,
					"confirmationStatus": "confirmed",
				},
				nil,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	statuses, err := client.GetSignatureStatuses(context.Background(), known, unknown)
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0] == nil || statuses[0].ConfirmationStatus != CommitmentConfirmed {
		t.Fatalf("expected confirmed status, got %+v", statuses[0])
	}
	if statuses[0].Slot != 98 {
		t.Errorf("expected slot 98, got %d", statuses[0].Slot)
	}
	if statuses[1] != nil {
		t.Errorf("expected nil for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := newRPCServer(t, "getAccountInfo", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   uint64(1000000),
				"owner":      "11111111111111111111111111111111",
				"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), solana.SystemProgramID)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if !info.Owner.Equals(solana.SystemProgramID) {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if string(info.Data) != "Hello World" {
		t.Errorf("unexpected data: %q", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := newRPCServer(t, "getAccountInfo", func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), solana.SystemProgramID)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetTokenAccountBalance(t *testing.T) {
	server := newRPCServer(t, "getTokenAccountBalance", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"amount":         "999",
				"decimals":       0,
				"uiAmountString": "999",
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	amount, err := client.GetTokenAccountBalance(context.Background(), solana.SystemProgramID)
	if err != nil {
		t.Fatalf("GetTokenAccountBalance: %v", err)
	}
	if amount != 999 {
		t.Errorf("expected 999, got %d", amount)
	}
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := newRPCServer(t, "getTransaction", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"fee":         5000,
				"err":         map[string]interface{}{"InstructionError": []interface{}{0, "InvalidAccountData"}},
				"logMessages": []string{"Program log: Hello", "Program log: World"},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), testSignature(3))
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}
	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}
	if tx.Fee != 5000 {
		t.Errorf("expected fee 5000, got %d", tx.Fee)
	}
	if tx.Err == nil {
		t.Error("expected ledger error")
	}
	if len(tx.LogMessages) != 2 {
		t.Errorf("expected 2 log messages, got %d", len(tx.LogMessages))
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := newRPCServer(t, "getTransaction", func(req rpcRequest) interface{} {
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), testSignature(4))
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
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
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}

	if rpcErr.Code != -32002 {
		t.Errorf("expected code -32002, got %d", rpcErr.Code)
	}

	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
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
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
