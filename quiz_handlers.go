package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/*** DTOs ***/

type CreateQuizReq struct {
	Title          string   `json:"title" binding:"required"`
	Category       string   `json:"category" binding:"required"`
	Question       string   `json:"question" binding:"required"`
	Options        []string `json:"options" binding:"required,min=2"`
	CorrectAnswer  *int     `json:"correctAnswer" binding:"required"`
	Explanation    string   `json:"explanation"`
	CreatorAddress *string  `json:"creatorAddress"`
	CreatorFID     *int64   `json:"creatorFid"`
	CoinAddress    *string  `json:"coinAddress"`
}

type AnswerReq struct {
	Selected  *int  `json:"selected"`  // nil when the timer ran out
	TimeSpent int64 `json:"timeSpent"` // ms
}

type AnswerResult struct {
	IsCorrect     bool          `json:"isCorrect"`
	CorrectAnswer int           `json:"correctAnswer"`
	Explanation   string        `json:"explanation,omitempty"`
	TicketsEarned int           `json:"ticketsEarned"`
	TokensEarned  int           `json:"tokensEarned"`
	Progress      *UserProgress `json:"progress"`
}

/*** Quizzes ***/

// GET /api/v1/quizzes
func ListActiveQuizzes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Where("is_active = ?", true)
		if cat := strings.TrimSpace(c.Query("category")); cat != "" {
			q = q.Where("category = ?", cat)
		}
		var out []Quiz
		if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// POST /api/v1/quizzes
func CreateQuiz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateQuizReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title, category, question, options (>=2) and correctAnswer required"})
			return
		}
		if *req.CorrectAnswer < 0 || *req.CorrectAnswer >= len(req.Options) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "correctAnswer out of range"})
			return
		}
		quiz := Quiz{
			Title:          strings.TrimSpace(req.Title),
			Category:       strings.TrimSpace(req.Category),
			Question:       strings.TrimSpace(req.Question),
			Options:        req.Options,
			CorrectAnswer:  *req.CorrectAnswer,
			Explanation:    req.Explanation,
			IsActive:       true,
			CreatorAddress: lowerPtr(req.CreatorAddress),
			CreatorFID:     req.CreatorFID,
			CoinAddress:    lowerPtr(req.CoinAddress),
			CreatedAt:      time.Now(),
		}
		if err := db.Create(&quiz).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": quiz.ID})
	}
}

// POST /api/v1/quizzes/:id/answer
func AnswerQuiz(db *gorm.DB, board *Leaderboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad quiz id"})
			return
		}
		var req AnswerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}

		var quiz Quiz
		if err := db.First(&quiz, "id = ? AND is_active = ?", id, true).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
			return
		}

		res, err := recordAnswer(db, uid, quiz, req, time.Now(), rand.New(rand.NewSource(time.Now().UnixNano())))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		board.Update(c.Request.Context(), res.Progress)
		c.JSON(http.StatusOK, res)
	}
}

// recordAnswer writes the attempt, progress, reward transaction and toast together.
func recordAnswer(db *gorm.DB, uid string, quiz Quiz, req AnswerReq, now time.Time, r *rand.Rand) (*AnswerResult, error) {
	isCorrect := isCorrectAnswer(quiz, req.Selected)
	spent := time.Duration(req.TimeSpent) * time.Millisecond
	tickets := TicketsFor(isCorrect, spent, r)
	tokens := TokensFor(tickets)
	quizKey := strconv.FormatUint(uint64(quiz.ID), 10)

	var progress UserProgress
	err := db.Transaction(func(tx *gorm.DB) error {
		attempt := QuizAttempt{
			UserID:        uid,
			QuizID:        quizKey,
			IsCorrect:     isCorrect,
			TimeSpent:     req.TimeSpent,
			TicketsEarned: tickets,
			TokensEarned:  tokens,
			AnsweredAt:    now,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		p, err := loadProgress(tx, uid, now)
		if err != nil {
			return err
		}
		ApplyResult(&p, quizKey, isCorrect, tickets, dayString(now))
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		progress = p

		if tokens > 0 {
			desc := "Quiz reward for participation"
			if isCorrect {
				desc = "Quiz reward for correct"
			}
			if err := recordTransaction(tx, uid, TxReward, decimal.NewFromInt(int64(tokens)), desc, now); err != nil {
				return err
			}
		}

		msg, typ := "Better luck next time!", NotifyInfo
		if isCorrect {
			msg = fmt.Sprintf("Correct! You earned %d tickets and %d QT tokens!", tickets, tokens)
			typ = NotifySuccess
		}
		return sendToast(tx, msg, typ, &uid, false, now)
	})
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		IsCorrect:     isCorrect,
		CorrectAnswer: quiz.CorrectAnswer,
		Explanation:   quiz.Explanation,
		TicketsEarned: tickets,
		TokensEarned:  tokens,
		Progress:      &progress,
	}, nil
}

/*** Progress ***/

// loadProgress returns the stored record, or an unsaved default one.
func loadProgress(db *gorm.DB, uid string, now time.Time) (UserProgress, error) {
	var p UserProgress
	res := db.Where("user_id = ?", uid).Limit(1).Find(&p)
	if res.Error != nil {
		return p, res.Error
	}
	if res.RowsAffected == 0 {
		return defaultProgress(uid, now), nil
	}
	if p.CompletedQuizzes == nil {
		p.CompletedQuizzes = []string{}
	}
	return p, nil
}

// GET /api/v1/progress
func GetProgress(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		p, err := loadProgress(db, uid, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type UpdateProgressReq struct {
	TotalTickets     int      `json:"totalTickets" binding:"min=0"`
	TodayTickets     int      `json:"todayTickets" binding:"min=0"`
	Streak           int      `json:"streak" binding:"min=0"`
	CompletedQuizzes []string `json:"completedQuizzes"`
	LastPlayDate     string   `json:"lastPlayDate" binding:"required"`
}

// PUT /api/v1/progress
func PutProgress(db *gorm.DB, board *Leaderboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		var req UpdateProgressReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if _, err := time.Parse(dateLayout, req.LastPlayDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lastPlayDate must be YYYY-MM-DD"})
			return
		}

		p, err := loadProgress(db, uid, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		p.TotalTickets = req.TotalTickets
		p.TodayTickets = req.TodayTickets
		p.Streak = req.Streak
		p.CompletedQuizzes = req.CompletedQuizzes
		if p.CompletedQuizzes == nil {
			p.CompletedQuizzes = []string{}
		}
		p.LastPlayDate = req.LastPlayDate
		if err := db.Save(&p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		board.Update(c.Request.Context(), &p)
		c.JSON(http.StatusOK, p)
	}
}

type RecordAttemptReq struct {
	QuizID        string `json:"quizId" binding:"required"`
	IsCorrect     bool   `json:"isCorrect"`
	TimeSpent     int64  `json:"timeSpent" binding:"min=0"`
	TicketsEarned int    `json:"ticketsEarned" binding:"min=0"`
	TokensEarned  int    `json:"tokensEarned" binding:"min=0"`
}

// POST /api/v1/attempts
func RecordAttempt(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUserID(c)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		var req RecordAttemptReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		a := QuizAttempt{
			UserID:        uid,
			QuizID:        req.QuizID,
			IsCorrect:     req.IsCorrect,
			TimeSpent:     req.TimeSpent,
			TicketsEarned: req.TicketsEarned,
			TokensEarned:  req.TokensEarned,
			AnsweredAt:    time.Now(),
		}
		if err := db.Create(&a).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}

// POST /api/v1/quizzes/import
// Stores every question of a generated quiz as its own quiz card.
func ImportAIQuiz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q AIQuiz
		if err := c.ShouldBindJSON(&q); err != nil || len(q.Questions) == 0 || q.Topic == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "generated quiz with topic and questions required"})
			return
		}
		quizzes := make([]Quiz, 0, len(q.Questions))
		for i := range q.Questions {
			quiz, err := quizFromAI(q, i)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			quizzes = append(quizzes, quiz)
		}
		if err := db.Create(&quizzes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		ids := make([]uint, len(quizzes))
		for i, qz := range quizzes {
			ids[i] = qz.ID
		}
		c.JSON(http.StatusCreated, gin.H{"ids": ids})
	}
}
