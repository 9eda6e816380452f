package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
	NotifyWarning = "warning"

	notificationSource = "Quiz Arena"
	recentWindow       = 30 * time.Second
	notificationTTL    = 5 * time.Minute
	recentLimit        = 20
	userFeedLimit      = 50
)

var ErrBadNotificationType = errors.New("type must be success, error, info or warning")

func validNotificationType(t string) bool {
	switch t {
	case NotifySuccess, NotifyError, NotifyInfo, NotifyWarning:
		return true
	}
	return false
}

func sendToast(db *gorm.DB, message, typ string, userID *string, global bool, now time.Time) error {
	if !validNotificationType(typ) {
		return ErrBadNotificationType
	}
	n := Notification{
		Message:     message,
		Type:        typ,
		TriggeredBy: notificationSource,
		UserID:      userID,
		IsGlobal:    global,
		CreatedAt:   now,
	}
	return db.Create(&n).Error
}

// RecentNotifications returns toasts from the last 30 seconds: the user's own
// plus global ones, or only global ones when userID is empty.
func RecentNotifications(db *gorm.DB, userID string, now time.Time) ([]Notification, error) {
	q := db.Where("created_at > ?", now.Add(-recentWindow))
	if userID != "" {
		q = q.Where("user_id = ? OR is_global = ?", userID, true)
	} else {
		q = q.Where("is_global = ?", true)
	}
	var out []Notification
	err := q.Order("created_at DESC, id DESC").Limit(recentLimit).Find(&out).Error
	return out, err
}

// ClearOldNotifications removes everything older than five minutes.
func ClearOldNotifications(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("created_at < ?", now.Add(-notificationTTL)).Delete(&Notification{})
	return res.RowsAffected, res.Error
}

// RunNotificationJanitor purges old notifications every interval until ctx is done.
func RunNotificationJanitor(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := ClearOldNotifications(db, now)
			if err != nil {
				log.Printf("notification cleanup: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("removed %d old notifications", n)
			}
		}
	}
}

/*** Handlers ***/

type SendToastReq struct {
	Message  string  `json:"message" binding:"required"`
	Type     string  `json:"type" binding:"required"`
	UserID   *string `json:"userId"`
	IsGlobal bool    `json:"isGlobal"`
}

// POST /api/v1/notifications
func SendToast(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendToastReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message and type required"})
			return
		}
		if err := sendToast(db, req.Message, req.Type, req.UserID, req.IsGlobal, time.Now()); err != nil {
			if errors.Is(err, ErrBadNotificationType) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"sent": true})
	}
}

// GET /api/v1/notifications/recent?scope=global
func ListRecentNotifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := ""
		if c.Query("scope") != "global" {
			uid = currentUserID(c)
		}
		out, err := RecentNotifications(db, uid, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/v1/notifications
func ListMyNotifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		var out []Notification
		if err := db.Where("user_id = ?", uid).
			Order("created_at DESC, id DESC").
			Limit(userFeedLimit).
			Find(&out).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
