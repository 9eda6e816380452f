package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeResponse struct {
	PublicID      string  `json:"publicId"`
	DisplayName   *string `json:"displayName,omitempty"`
	FID           *int64  `json:"fid,omitempty"`
	WalletAddress *string `json:"walletAddress,omitempty"`
}

type MeUpdateReq struct {
	DisplayName *string `json:"displayName"`
}

type RestoreReq struct {
	PublicID string `json:"publicId"`
}

func meResponse(u User) MeResponse {
	return MeResponse{
		PublicID:      u.PublicID,
		DisplayName:   u.DisplayName,
		FID:           u.FID,
		WalletAddress: u.WalletAddress,
	}
}

func loadCurrentUser(c *gin.Context, db *gorm.DB) (*User, bool) {
	pubID := currentUserID(c)
	if pubID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
		return nil, false
	}
	var u User
	if err := db.First(&u, "public_id = ?", pubID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return nil, false
	}
	return &u, true
}

// GET /api/v1/me
func GetMe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := loadCurrentUser(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, meResponse(*u))
	}
}

// PUT /api/v1/me
func UpdateMe(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := loadCurrentUser(c, db)
		if !ok {
			return
		}
		var req MeUpdateReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if len(name) < 2 || len(name) > 40 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "displayName must be 2..40 chars"})
				return
			}
			u.DisplayName = &name
		}
		if err := db.Save(u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, meResponse(*u))
	}
}

// GET /api/v1/me/export-key
func ExportKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		pubID := currentUserID(c)
		if pubID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"publicId": pubID})
	}
}

// POST /api/v1/me/restore
func RestoreAccount(db *gorm.DB, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RestoreReq
		if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.PublicID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "publicId required"})
			return
		}
		if _, err := uuid.Parse(req.PublicID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "publicId must be a uuid"})
			return
		}
		var u User
		if err := db.First(&u, "public_id = ?", req.PublicID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if u.WalletAddress != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "wallet accounts sign in with their wallet"})
			return
		}
		setUserCookie(c, u.PublicID, secureCookies)
		c.JSON(http.StatusOK, gin.H{"status": "restored"})
	}
}
