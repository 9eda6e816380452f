package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() Config {
	return Config{
		JWTSecret:    "test-secret",
		QuizModel:    "quiz-model",
		InfoModel:    "info-model",
		LLMTimeout:   time.Second,
		ChainID:      HyperionTestnetID,
		ReceiptWait:  200 * time.Millisecond,
		StartBalance: decimal.NewFromInt(1000),
		PlayDeposit:  decimal.NewFromInt(50),
	}
}

// newTestApp builds the router over a temp sqlite database. Options run before
// the services are wired.
func newTestApp(t *testing.T, opts ...func(*App)) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	chain, err := LookupChain(HyperionTestnetID)
	if err != nil {
		t.Fatal(err)
	}
	app := &App{cfg: testConfig(), db: newTestDB(t), chain: chain}
	for _, o := range opts {
		o(app)
	}
	app.wire()
	return app, newRouter(app)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func as(pubID string) map[string]string {
	return map[string]string{publicIDHdr: pubID}
}

// newUser lets EnsureUser create an anonymous user and returns its public id.
func newUser(t *testing.T, h http.Handler) string {
	t.Helper()
	w := doJSON(t, h, http.MethodGet, "/api/v1/me", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /me = %d: %s", w.Code, w.Body)
	}
	id := w.Header().Get(publicIDHdr)
	if id == "" {
		t.Fatal("no public id header")
	}
	return id
}

// signIn runs the wallet sign-in for key from a fresh anonymous user and
// returns the public id with a bearer header.
func signIn(t *testing.T, h http.Handler, key *ecdsa.PrivateKey) (string, map[string]string) {
	t.Helper()
	return signInAs(t, h, key, as(newUser(t, h)))
}

func signInAs(t *testing.T, h http.Handler, key *ecdsa.PrivateKey, header map[string]string) (string, map[string]string) {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/nonce", nil, header)
	nonce := decode[map[string]any](t, w)["nonce"].(string)
	msg := "Sign in to QuizDrop\nNonce: " + nonce
	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/verify", map[string]any{
		"address":   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		"message":   msg,
		"signature": personalSign(t, key, msg),
	}, header)
	if w.Code != http.StatusOK {
		t.Fatalf("sign in = %d: %s", w.Code, w.Body)
	}
	body := decode[map[string]any](t, w)
	return body["publicId"].(string), map[string]string{"Authorization": "Bearer " + body["token"].(string)}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return v
}

// fakeChain answers eth_call from stubbed outputs and serves stored
// transactions and receipts.
type fakeChain struct {
	chainID  *big.Int
	nonce    uint64
	outputs  map[string][]byte
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(HyperionTestnetID),
		outputs:  map[string][]byte{},
		txs:      map[common.Hash]*types.Transaction{},
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(selector)
}

func (f *fakeChain) stub(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("no method %s", method)
	}
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	f.outputs[callKey(to, m.ID)] = out
}

func (f *fakeChain) mined(hash string, ok bool) {
	status := types.ReceiptStatusFailed
	if ok {
		status = types.ReceiptStatusSuccessful
	}
	h := common.HexToHash(hash)
	f.receipts[h] = &types.Receipt{Status: status, TxHash: h, BlockNumber: big.NewInt(1)}
}

// send signs a QuizGame call with key, stores it as mined with the given
// status and returns its hash.
func (f *fakeChain) send(t *testing.T, key *ecdsa.PrivateKey, to common.Address, ok bool, method string, args ...interface{}) string {
	t.Helper()
	data, err := quizGameABI.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(f.chainID), &types.DynamicFeeTx{
		ChainID:   f.chainID,
		Nonce:     f.nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
		Gas:       100000,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.nonce++
	f.txs[tx.Hash()] = tx
	f.mined(tx.Hash().Hex(), ok)
	return tx.Hash().Hex()
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	out, ok := f.outputs[callKey(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	r, ok := f.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeChain) TransactionByHash(_ context.Context, h common.Hash) (*types.Transaction, bool, error) {
	tx, ok := f.txs[h]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func txHash(n byte) string {
	return common.BytesToHash([]byte{n}).Hex()
}
