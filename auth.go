package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	nonceTTL      = 5 * time.Minute
	nonceKeyPref  = "auth:nonce:"
	tokenLifetime = 24 * time.Hour
)

var (
	ErrBadSignature = errors.New("signature does not match address")
	ErrNonceUnknown = errors.New("nonce unknown or expired")
)

var nonceRe = regexp.MustCompile(`(?i)nonce:\s*([0-9a-z]+)`)

/*** Tokens ***/

type SessionClaims struct {
	FID     *int64 `json:"fid,omitempty"`
	Address string `json:"address,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

func (t *TokenIssuer) Issue(u User, now time.Time) (string, error) {
	claims := SessionClaims{
		FID: u.FID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.PublicID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}
	if u.WalletAddress != nil {
		claims.Address = *u.WalletAddress
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Verify(raw string) (*SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

/*** Nonces ***/

type NonceStore interface {
	Put(ctx context.Context, nonce string) error
	// Consume removes the nonce and reports whether it was live.
	Consume(ctx context.Context, nonce string) (bool, error)
}

type RedisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func (s *RedisNonceStore) Put(ctx context.Context, nonce string) error {
	return s.client.Set(ctx, nonceKeyPref+nonce, 1, nonceTTL).Err()
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	_, err := s.client.GetDel(ctx, nonceKeyPref+nonce).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryNonceStore is used when redis is not configured.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{entries: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryNonceStore) Put(_ context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for n, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, n)
		}
	}
	s.entries[nonce] = now.Add(nonceTTL)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[nonce]
	delete(s.entries, nonce)
	return ok && !s.now().After(exp), nil
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

/*** Signatures ***/

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyWalletSignature checks that signature over message was made by address.
func VerifyWalletSignature(address, message, signature string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if signer != common.HexToAddress(address) {
		return ErrBadSignature
	}
	return nil
}

/*** Handlers ***/

// POST /api/v1/auth/nonce
func IssueNonce(nonces NonceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := newNonce()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce"})
			return
		}
		if err := nonces.Put(c.Request.Context(), n); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce store"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"nonce": n, "expiresIn": int(nonceTTL.Seconds())})
	}
}

type VerifyReq struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	FID       *int64 `json:"fid"`
}

// POST /api/v1/auth/verify
func VerifySignIn(db *gorm.DB, nonces NonceStore, tokens *TokenIssuer, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address, message and signature required"})
			return
		}

		m := nonceRe.FindStringSubmatch(req.Message)
		if m == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message has no nonce"})
			return
		}
		ok, err := nonces.Consume(c.Request.Context(), m[1])
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce store"})
			return
		}
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrNonceUnknown.Error()})
			return
		}

		if err := VerifyWalletSignature(req.Address, req.Message, req.Signature); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		addr := strings.ToLower(common.HexToAddress(req.Address).Hex())

		u, err := bindWallet(db, currentUserID(c), addr, req.FID)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "fid already linked to another wallet"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		token, err := tokens.Issue(u, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token"})
			return
		}
		setUserCookie(c, u.PublicID, secureCookies)
		c.JSON(http.StatusOK, gin.H{
			"token":         token,
			"publicId":      u.PublicID,
			"walletAddress": addr,
			"fid":           u.FID,
		})
	}
}

// bindWallet signs the caller in as the wallet's owner. A wallet seen before maps
// back to its user; a new wallet is attached to the current anonymous user, or
// to a new user when there is none.
func bindWallet(db *gorm.DB, currentPublicID, addr string, fid *int64) (User, error) {
	var u User
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&u, "wallet_address = ?", addr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			u = User{}
			if currentPublicID != "" {
				if err := tx.First(&u, "public_id = ?", currentPublicID).Error; err != nil {
					return err
				}
			}
			// guests and accounts holding another wallet get a new user
			if u.ID == 0 || u.WalletAddress != nil {
				u = User{PublicID: uuid.New().String()}
			}
			u.WalletAddress = &addr
		} else if err != nil {
			return err
		}

		if fid != nil {
			var other User
			err := tx.Where("fid = ? AND id <> ?", *fid, u.ID).First(&other).Error
			if err == nil {
				return gorm.ErrDuplicatedKey
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			u.FID = fid
		}
		return tx.Save(&u).Error
	})
	return u, err
}
