package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// pageParams reads ?limit=20&offset=0 (limit default 20, max 100).
func pageParams(c *gin.Context) (limit, offset int) {
	limit = 20
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			if n > 100 {
				n = 100
			}
			limit = n
		}
	}
	if o := c.Query("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// GET /api/v1/quizzes/:id
func GetQuiz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad quiz id"})
			return
		}
		var q Quiz
		if err := db.First(&q, "id = ?", id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// ListMyAttempts returns the caller's attempts, newest first, with pagination.
// GET /api/v1/attempts?limit=20&offset=0
func ListMyAttempts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		limit, offset := pageParams(c)

		var total int64
		if err := db.Model(&QuizAttempt{}).Where("user_id = ?", uid).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		var items []QuizAttempt
		if err := db.Where("user_id = ?", uid).
			Order("answered_at DESC, id DESC").
			Limit(limit).Offset(offset).
			Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
			"items":  items,
		})
	}
}
