package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"
)

const maxBalanceCoins = 100

var (
	ErrCoinExists  = errors.New("coin already registered")
	ErrBadCoinMeta = errors.New("name (1..100 chars) and symbol (1..10 chars) required")
	ErrNotCreator  = errors.New("only the coin creator's wallet can change it")
)

type CreateCoinReq struct {
	CoinAddress    string  `json:"coinAddress" binding:"required"`
	TxHash         string  `json:"txHash" binding:"required"`
	Name           string  `json:"name" binding:"required,max=100"`
	Symbol         string  `json:"symbol" binding:"required,max=10"`
	Description    *string `json:"description"`
	CreatorAddress string  `json:"creatorAddress" binding:"required"`
	CreatorFID     *int64  `json:"creatorFid"`
	ChainID        int64   `json:"chainId"`
}

// RegisterCoin records a coin deployed through the coins factory.
func RegisterCoin(db *gorm.DB, in CreateCoinReq, now time.Time) (*Coin, error) {
	if !common.IsHexAddress(in.CoinAddress) || !common.IsHexAddress(in.CreatorAddress) {
		return nil, ErrBadAddress
	}
	if !isTxHash(in.TxHash) {
		return nil, ErrBadTxHash
	}
	name, symbol := strings.TrimSpace(in.Name), strings.TrimSpace(in.Symbol)
	if name == "" || len(name) > 100 || symbol == "" || len(symbol) > 10 {
		return nil, ErrBadCoinMeta
	}
	if in.ChainID == 0 {
		in.ChainID = BaseID
	}
	coin := Coin{
		CoinAddress:    strings.ToLower(in.CoinAddress),
		TxHash:         strings.ToLower(in.TxHash),
		Name:           name,
		Symbol:         symbol,
		Description:    in.Description,
		CreatorAddress: strings.ToLower(in.CreatorAddress),
		CreatorFID:     in.CreatorFID,
		ChainID:        in.ChainID,
		CreatedAt:      now,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Coin{}).Where("coin_address = ?", coin.CoinAddress).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrCoinExists
		}
		return tx.Create(&coin).Error
	})
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

func findCoin(db *gorm.DB, address string) (*Coin, error) {
	var coin Coin
	if err := db.First(&coin, "coin_address = ?", strings.ToLower(address)).Error; err != nil {
		return nil, err
	}
	return &coin, nil
}

// creatorCoin loads the coin at address for a caller signed in with the
// coin's creator wallet.
func creatorCoin(c *gin.Context, db *gorm.DB, address string) (*Coin, error) {
	coin, err := findCoin(db, address)
	if err != nil {
		return nil, err
	}
	var u User
	if err := db.First(&u, "public_id = ?", currentUserID(c)).Error; err != nil {
		return nil, ErrNotCreator
	}
	if u.WalletAddress == nil || *u.WalletAddress != coin.CreatorAddress {
		return nil, ErrNotCreator
	}
	return coin, nil
}

func coinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "coin not found"})
	case errors.Is(err, ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCoinExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBadAddress), errors.Is(err, ErrBadTxHash), errors.Is(err, ErrBadCoinMeta):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
	}
}

// POST /api/v1/coins
func CreateCoin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCoinReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coinAddress, txHash, name (<=100), symbol (<=10) and creatorAddress required"})
			return
		}
		coin, err := RegisterCoin(db, req, time.Now())
		if err != nil {
			coinError(c, err)
			return
		}
		c.JSON(http.StatusCreated, coin)
	}
}

// GET /api/v1/coins?creatorFid=&creator=&q=
func ListCoins(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&Coin{})
		if s := c.Query("creatorFid"); s != "" {
			fid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad creatorFid"})
				return
			}
			q = q.Where("creator_fid = ?", fid)
		}
		if s := strings.TrimSpace(c.Query("creator")); s != "" {
			q = q.Where("creator_address = ?", strings.ToLower(s))
		}
		if s := strings.TrimSpace(c.Query("q")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(symbol) LIKE ?", like, like)
		}
		var out []Coin
		if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/v1/coins/:address
func GetCoin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coin, err := findCoin(db, c.Param("address"))
		if err != nil {
			coinError(c, err)
			return
		}
		c.JSON(http.StatusOK, coin)
	}
}

type CoinQuestionReq struct {
	Question    string   `json:"question" binding:"required"`
	Options     []string `json:"options" binding:"required,min=2"`
	CorrectIdx  *int     `json:"correctIdx" binding:"required"`
	Explanation *string  `json:"explanation"`
}

// POST /api/v1/coins/:address/questions
// Body is a single question or an array of them.
func AddCoinQuestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coin, err := creatorCoin(c, db, c.Param("address"))
		if err != nil {
			coinError(c, err)
			return
		}
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		var reqs []CoinQuestionReq
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &reqs)
		} else {
			var one CoinQuestionReq
			err = json.Unmarshal(trimmed, &one)
			reqs = []CoinQuestionReq{one}
		}
		if err != nil || len(reqs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}

		rows := make([]CoinQuestion, 0, len(reqs))
		for i, r := range reqs {
			if err := binding.Validator.ValidateStruct(r); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "question " + strconv.Itoa(i+1) + ": question, options (>=2) and correctIdx required"})
				return
			}
			if *r.CorrectIdx < 0 || *r.CorrectIdx >= len(r.Options) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "question " + strconv.Itoa(i+1) + ": correctIdx out of range"})
				return
			}
			rows = append(rows, CoinQuestion{
				CoinID:      coin.ID,
				Question:    strings.TrimSpace(r.Question),
				Options:     r.Options,
				CorrectIdx:  *r.CorrectIdx,
				Explanation: r.Explanation,
			})
		}
		if err := db.Create(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, rows)
	}
}

// GET /api/v1/coins/:address/questions
func ListCoinQuestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coin, err := findCoin(db, c.Param("address"))
		if err != nil {
			coinError(c, err)
			return
		}
		var out []CoinQuestion
		if err := db.Where("coin_id = ?", coin.ID).Order("id").Find(&out).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

type UpdateCoinReq struct {
	Description string `json:"description"`
}

// PATCH /api/v1/coins/:address
func UpdateCoinDescription(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coin, err := creatorCoin(c, db, c.Param("address"))
		if err != nil {
			coinError(c, err)
			return
		}
		var req UpdateCoinReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		desc := strings.TrimSpace(req.Description)
		coin.Description = &desc
		if err := db.Model(coin).Update("description", desc).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, coin)
	}
}

// DeleteCoin removes a coin together with its questions.
func DeleteCoin(db *gorm.DB, address string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		coin, err := findCoin(tx, address)
		if err != nil {
			return err
		}
		if err := tx.Where("coin_id = ?", coin.ID).Delete(&CoinQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(coin).Error
	})
}

// DELETE /api/v1/coins/:address
func DeleteCoinHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		coin, err := creatorCoin(c, db, c.Param("address"))
		if err != nil {
			coinError(c, err)
			return
		}
		if err := DeleteCoin(db, coin.CoinAddress); err != nil {
			coinError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type CoinStatsResponse struct {
	TotalCoins     int64 `json:"totalCoins"`
	TotalQuestions int64 `json:"totalQuestions"`
	UniqueCreators int64 `json:"uniqueCreators"`
}

func coinStats(db *gorm.DB) (CoinStatsResponse, error) {
	var s CoinStatsResponse
	if err := db.Model(&Coin{}).Count(&s.TotalCoins).Error; err != nil {
		return s, err
	}
	if err := db.Model(&CoinQuestion{}).Count(&s.TotalQuestions).Error; err != nil {
		return s, err
	}
	err := db.Model(&Coin{}).Distinct("creator_address").Count(&s.UniqueCreators).Error
	return s, err
}

// GET /api/v1/coins/stats
func CoinStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := coinStats(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

type CoinHolding struct {
	Name    string `json:"name"`
	ChainID int64  `json:"chainId"`
	TokenBalance
}

// CoinBalances reads the holder's balance of every registered coin, skipping
// empty holdings and coins whose contract cannot be read.
func CoinBalances(ctx context.Context, db *gorm.DB, reader ContractReader, holder common.Address) ([]CoinHolding, error) {
	if reader == nil {
		return nil, ErrNoChainBackend
	}
	var coins []Coin
	if err := db.Order("created_at DESC, id DESC").Limit(maxBalanceCoins).Find(&coins).Error; err != nil {
		return nil, err
	}
	out := []CoinHolding{}
	for _, coin := range coins {
		b, err := ERC20Balance(ctx, reader, common.HexToAddress(coin.CoinAddress), holder)
		if err != nil {
			log.Printf("balance of %s in %s: %v", holder.Hex(), coin.CoinAddress, err)
			continue
		}
		if b.Raw == "0" {
			continue
		}
		out = append(out, CoinHolding{Name: coin.Name, ChainID: coin.ChainID, TokenBalance: *b})
	}
	return out, nil
}

// GET /api/v1/coins/balances/:address
func CoinBalancesHandler(db *gorm.DB, reader ContractReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if !common.IsHexAddress(addr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrBadAddress.Error()})
			return
		}
		out, err := CoinBalances(c.Request.Context(), db, reader, common.HexToAddress(addr))
		switch {
		case errors.Is(err, ErrNoChainBackend):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
		default:
			c.JSON(http.StatusOK, gin.H{"address": strings.ToLower(addr), "holdings": out})
		}
	}
}
