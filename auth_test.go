package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	msg := "Sign in to QuizDrop\nNonce: abc123"
	sig := personalSign(t, key, msg)

	got, err := RecoverSigner(msg, sig)
	if err != nil {
		t.Fatal(err)
	}
	if got != addr {
		t.Errorf("RecoverSigner() = %s, want %s", got.Hex(), addr.Hex())
	}

	if err := VerifyWalletSignature(strings.ToLower(addr.Hex()), msg, sig); err != nil {
		t.Errorf("lowercase address rejected: %v", err)
	}
	if err := VerifyWalletSignature(addr.Hex(), msg+"!", sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered message error = %v", err)
	}
	if _, err := RecoverSigner(msg, "0x1234"); err == nil {
		t.Error("short signature accepted")
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("s3cret")
	fid := int64(42)
	wallet := "0xabc"
	now := time.Now()
	tok, err := issuer.Issue(User{PublicID: "pub-1", FID: &fid, WalletAddress: &wallet}, now)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "pub-1" || claims.FID == nil || *claims.FID != 42 || claims.Address != wallet {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := NewTokenIssuer("other").Verify(tok); err == nil {
		t.Error("token verified with the wrong secret")
	}
	expired, _ := issuer.Issue(User{PublicID: "pub-1"}, now.Add(-48*time.Hour))
	if _, err := issuer.Verify(expired); err == nil {
		t.Error("expired token accepted")
	}
}

func TestNonceStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := time.Now()
	mem := NewMemoryNonceStore()
	mem.now = func() time.Time { return clock }

	stores := []struct {
		name    string
		store   NonceStore
		advance func(time.Duration)
	}{
		{"redis", NewRedisNonceStore(client), mr.FastForward},
		{"memory", mem, func(d time.Duration) { clock = clock.Add(d) }},
	}
	ctx := context.Background()
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			if err := s.store.Put(ctx, "n1"); err != nil {
				t.Fatal(err)
			}
			if ok, err := s.store.Consume(ctx, "n1"); err != nil || !ok {
				t.Fatalf("first consume = %v, %v", ok, err)
			}
			if ok, _ := s.store.Consume(ctx, "n1"); ok {
				t.Error("nonce consumed twice")
			}
			if ok, _ := s.store.Consume(ctx, "never"); ok {
				t.Error("unknown nonce accepted")
			}

			_ = s.store.Put(ctx, "n2")
			s.advance(nonceTTL + time.Second)
			if ok, _ := s.store.Consume(ctx, "n2"); ok {
				t.Error("expired nonce accepted")
			}
		})
	}
}

func TestWalletSignIn(t *testing.T) {
	_, r := newTestApp(t)
	uid := newUser(t, r)
	key, _ := crypto.GenerateKey()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/nonce", nil, as(uid))
	nonce := decode[map[string]any](t, w)["nonce"].(string)
	msg := "realmind.xyz wants you to sign in\nNonce: " + nonce
	verify := gin.H{"address": addr, "message": msg, "signature": personalSign(t, key, msg), "fid": 9001}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/verify", verify, as(uid))
	if w.Code != http.StatusOK {
		t.Fatalf("verify = %d: %s", w.Code, w.Body)
	}
	body := decode[map[string]any](t, w)
	if body["publicId"] != uid {
		t.Errorf("publicId = %v, want the anonymous user %s", body["publicId"], uid)
	}
	bearer := map[string]string{"Authorization": "Bearer " + body["token"].(string)}

	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/verify", verify, bearer); w.Code != http.StatusUnauthorized {
		t.Errorf("replayed nonce = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil, bearer)
	me := decode[MeResponse](t, w)
	if me.WalletAddress == nil || *me.WalletAddress != strings.ToLower(addr) || me.FID == nil || *me.FID != 9001 {
		t.Errorf("me = %+v", me)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"Authorization": "Bearer junk"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("junk token = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/verify", gin.H{
		"address": addr, "message": "no nonce here", "signature": "0x00",
	}, bearer)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing nonce = %d, want 400", w.Code)
	}
}

func TestWalletAccountNeedsToken(t *testing.T) {
	_, r := newTestApp(t)
	key, _ := crypto.GenerateKey()
	uid, bearer := signIn(t, r, key)

	doJSON(t, r, http.MethodPut, "/api/v1/progress", map[string]any{"totalTickets": 600, "lastPlayDate": "2025-02-01"}, bearer)

	// the public id alone no longer acts for a wallet account
	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPost, "/api/v1/rewards/claim", map[string]any{"rewardId": 2}, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/wallet", nil, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/me", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if w := doJSON(t, r, tt.method, tt.path, tt.body, as(uid)); w.Code != tt.want {
			t.Errorf("%s %s by public id = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/me/restore", map[string]any{"publicId": uid}, nil); w.Code != http.StatusForbidden {
		t.Errorf("restore wallet account = %d, want 403", w.Code)
	}

	p := decode[UserProgress](t, doJSON(t, r, http.MethodGet, "/api/v1/progress", nil, bearer))
	if p.TotalTickets != 600 {
		t.Errorf("tickets = %d, want 600 untouched", p.TotalTickets)
	}

	// a second wallet signed in over the first account's cookie gets its own user
	other, _ := crypto.GenerateKey()
	otherID, _ := signInAs(t, r, other, as(uid))
	if otherID == uid {
		t.Error("second wallet took over the first account")
	}
}
