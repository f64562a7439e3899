package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mintvault/core"
	"mintvault/crypto"
	"mintvault/native/sale"
	"mintvault/native/tiers"
	"mintvault/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech(addr [20]byte) string { return crypto.Address(addr).String() }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	genesis := core.Genesis{
		Admin: testAddr(0xAA),
		Board: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Balances: map[[20]byte]*big.Int{
			testAddr(0xB0): big.NewInt(1_000_000),
		},
	}
	for class := range genesis.Tiers {
		genesis.Tiers[class] = tiers.Info{Cap: 1000, RewardWeight: uint64(class + 1)}
	}
	node, err := core.NewNode(storage.NewMemDB(), genesis)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server := NewServer(node)
	server.authToken = "test-token"
	return server
}

func call(t *testing.T, s *Server, method string, params interface{}, token string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handle(recorder, httpReq)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return recorder, resp
}

func startTestPhase(t *testing.T, s *Server, base int64) {
	t.Helper()
	prices := make([]string, tiers.ClassCount)
	caps := make([]uint64, tiers.ClassCount)
	for class := range prices {
		prices[class] = fmt.Sprintf("%d", base+int64(class)*10)
		caps[class] = 100
	}
	_, resp := call(t, s, "sale_startPhase", map[string]interface{}{
		"caller": bech(testAddr(0xAA)),
		"prices": prices,
		"caps":   caps,
	}, "test-token")
	if resp.Error != nil {
		t.Fatalf("start phase: %+v", resp.Error)
	}
}

func TestStartPhaseRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	recorder, resp := call(t, s, "sale_startPhase", map[string]interface{}{
		"caller": bech(testAddr(0xAA)),
	}, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	recorder, _ = call(t, s, "sale_startPhase", map[string]interface{}{
		"caller": bech(testAddr(0xAA)),
	}, "wrong-token")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", recorder.Code)
	}
}

func TestPurchaseHandler(t *testing.T) {
	s := newTestServer(t)
	startTestPhase(t, s, 70)

	recorder, resp := call(t, s, "sale_purchase", map[string]interface{}{
		"buyer":    bech(testAddr(0xB0)),
		"class":    "common",
		"quantity": 2,
	}, "test-token")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var receipt receiptJSON
	if err := json.Unmarshal(raw, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Split.Gross != "140" || receipt.Split.Net != "140" {
		t.Fatalf("unexpected split %+v", receipt.Split)
	}
	if receipt.CodeKind != "none" {
		t.Fatalf("unexpected code kind %q", receipt.CodeKind)
	}
}

func TestPurchaseRejectsUnknownClass(t *testing.T) {
	s := newTestServer(t)
	startTestPhase(t, s, 70)

	recorder, resp := call(t, s, "sale_purchase", map[string]interface{}{
		"buyer":    bech(testAddr(0xB0)),
		"class":    "plutonium",
		"quantity": 1,
	}, "test-token")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}

func TestTreasuryLifecycleHandlers(t *testing.T) {
	s := newTestServer(t)
	startTestPhase(t, s, 1000)

	_, resp := call(t, s, "sale_purchase", map[string]interface{}{
		"buyer":    bech(testAddr(0xB0)),
		"class":    "common",
		"quantity": 1,
	}, "test-token")
	if resp.Error != nil {
		t.Fatalf("purchase: %+v", resp.Error)
	}

	_, resp = call(t, s, "treasury_request", map[string]interface{}{
		"caller":    bech(testAddr(0x01)),
		"amount":    "400",
		"recipient": bech(testAddr(0xD0)),
	}, "test-token")
	if resp.Error != nil {
		t.Fatalf("request: %+v", resp.Error)
	}

	for _, member := range []byte{0x01, 0x02} {
		_, resp = call(t, s, "treasury_approve", map[string]interface{}{
			"caller": bech(testAddr(member)),
			"id":     1,
		}, "test-token")
		if resp.Error != nil {
			t.Fatalf("approve by %#x: %+v", member, resp.Error)
		}
	}

	_, resp = call(t, s, "treasury_withdrawal", map[string]interface{}{"id": 1}, "")
	if resp.Error != nil {
		t.Fatalf("withdrawal query: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var stored withdrawalJSON
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode withdrawal: %v", err)
	}
	if !stored.Executed {
		t.Fatal("expected executed withdrawal after full board approval")
	}

	_, resp = call(t, s, "bank_balance", map[string]interface{}{
		"address": bech(testAddr(0xD0)),
	}, "")
	if resp.Error != nil {
		t.Fatalf("balance: %+v", resp.Error)
	}
}

func TestDirectPurchaseRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	startTestPhase(t, s, 70)

	recorder, resp := call(t, s, "sale_purchase", map[string]interface{}{
		"buyer":    bech(testAddr(0xB0)),
		"class":    "common",
		"quantity": 1,
	}, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated direct purchase, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	balance, err := s.node.BalanceOf(testAddr(0xB0))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected untouched balance, got %s", balance)
	}
}

func TestBoardMethodsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{"treasury_request", "treasury_approve", "treasury_block"} {
		recorder, resp := call(t, s, method, map[string]interface{}{
			"caller": bech(testAddr(0x01)),
			"id":     1,
		}, "")
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", method, recorder.Code)
		}
		if resp.Error == nil || resp.Error.Code != codeUnauthorized {
			t.Fatalf("%s: expected unauthorized error, got %+v", method, resp.Error)
		}
	}
}

func TestAuthorizedPurchaseNeedsNoToken(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	buyer := [20]byte(key.PubKey().Address())

	genesis := core.Genesis{
		Admin: testAddr(0xAA),
		Board: [][20]byte{testAddr(0x01), testAddr(0x02)},
		Balances: map[[20]byte]*big.Int{
			buyer: big.NewInt(1000),
		},
	}
	for class := range genesis.Tiers {
		genesis.Tiers[class] = tiers.Info{Cap: 1000, RewardWeight: 1}
	}
	node, err := core.NewNode(storage.NewMemDB(), genesis)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	s := NewServer(node)
	s.authToken = "test-token"
	startTestPhase(t, s, 70)

	auth := &sale.TransferAuthorization{
		From:        buyer,
		To:          node.TreasuryAddress(),
		Value:       big.NewInt(70),
		ValidAfter:  time.Now().Add(-time.Minute).Unix(),
		ValidBefore: time.Now().Add(time.Hour).Unix(),
		Nonce:       [32]byte{0x07},
	}
	digest := auth.Digest()
	auth.Signature, err = key.Sign(digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	recorder, resp := call(t, s, "sale_purchase", map[string]interface{}{
		"buyer":    bech(buyer),
		"class":    "common",
		"quantity": 1,
		"payment":  "authorized",
		"authorization": map[string]interface{}{
			"from":        bech(buyer),
			"to":          bech(node.TreasuryAddress()),
			"value":       "70",
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       hex.EncodeToString(auth.Nonce[:]),
			"signature":   hex.EncodeToString(auth.Signature),
		},
	}, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed purchase, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if resp.Error != nil {
		t.Fatalf("signed purchase: %+v", resp.Error)
	}

	balance, err := node.BalanceOf(buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(930)) != 0 {
		t.Fatalf("expected balance 930 after signed purchase, got %s", balance)
	}
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	recorder, resp := call(t, s, "sale_unknown", nil, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestTierQuery(t *testing.T) {
	s := newTestServer(t)
	_, resp := call(t, s, "sale_tier", map[string]interface{}{"class": "mythic"}, "")
	if resp.Error != nil {
		t.Fatalf("tier query: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var tier tierJSON
	if err := json.Unmarshal(raw, &tier); err != nil {
		t.Fatalf("decode tier: %v", err)
	}
	if tier.Cap != 1000 || tier.Class != "mythic" {
		t.Fatalf("unexpected tier %+v", tier)
	}
}
