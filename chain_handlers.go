package main

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/chain/chains
func ListChains() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, supportedChains)
	}
}

// GET /api/v1/chain/info
// Contract state of the configured QuizGame deployment.
func ChainInfo(game *QuizGame, chain Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		if game == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoChainBackend.Error()})
			return
		}
		ctx := c.Request.Context()
		amount, err := game.PlayAmount(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		owner, err := game.Owner(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		token, err := game.Token(ctx)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"chainId":       chain.ID,
			"chainName":     chain.Name,
			"symbol":        chain.Symbol,
			"contract":      strings.ToLower(game.Address().Hex()),
			"owner":         strings.ToLower(owner.Hex()),
			"token":         strings.ToLower(token.Hex()),
			"playAmount":    FormatEther(amount),
			"playAmountWei": amount.String(),
		})
	}
}

// GET /api/v1/chain/sessions/:address
func ChainSession(game *QuizGame) gin.HandlerFunc {
	return func(c *gin.Context) {
		if game == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoChainBackend.Error()})
			return
		}
		addr := c.Param("address")
		if !common.IsHexAddress(addr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrBadAddress.Error()})
			return
		}
		sess, err := game.Session(c.Request.Context(), common.HexToAddress(addr))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}
