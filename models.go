package main

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// --- User ---

type User struct {
	ID            uint    `gorm:"primaryKey"`
	PublicID      string  `gorm:"uniqueIndex;size:36;not null"` // cookie value
	DisplayName   *string
	FID           *int64  `gorm:"uniqueIndex"`          // Farcaster id
	WalletAddress *string `gorm:"uniqueIndex;size:42"` // lowercase 0x address
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// --- Quizzes ---

type Quiz struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	Title          string                      `gorm:"not null" json:"title"`
	Category       string                      `gorm:"index;not null" json:"category"`
	Question       string                      `gorm:"not null" json:"question"`
	Options        datatypes.JSONSlice[string] `gorm:"not null" json:"options"`
	CorrectAnswer  int                         `gorm:"not null" json:"-"`
	Explanation    string                      `json:"explanation,omitempty"`
	IsActive       bool                        `gorm:"index;not null;default:true" json:"isActive"`
	CreatorAddress *string                     `gorm:"size:42" json:"creatorAddress,omitempty"`
	CreatorFID     *int64                      `json:"creatorFid,omitempty"`
	CoinAddress    *string                     `gorm:"size:42" json:"coinAddress,omitempty"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

// Coin is a deployed quiz coin (ERC-20 created through the Zora coins factory).
type Coin struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CoinAddress    string         `gorm:"uniqueIndex;size:42;not null" json:"coinAddress"`
	TxHash         string         `gorm:"size:66;not null" json:"txHash"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	Symbol         string         `gorm:"size:10;not null" json:"symbol"`
	Description    *string        `json:"description,omitempty"`
	CreatorAddress string         `gorm:"index;size:42;not null" json:"creatorAddress"`
	CreatorFID     *int64         `gorm:"index" json:"creatorFid,omitempty"`
	ChainID        int64          `gorm:"not null;default:8453" json:"chainId"`
	Questions      []CoinQuestion `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type CoinQuestion struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	CoinID      uint                        `gorm:"index;not null" json:"quizId"`
	Question    string                      `gorm:"not null" json:"question"`
	Options     datatypes.JSONSlice[string] `gorm:"not null" json:"options"`
	CorrectIdx  int                         `gorm:"not null" json:"correctIdx"`
	Explanation *string                     `json:"explanation,omitempty"`
}

// --- Progress & logs ---

type UserProgress struct {
	ID               uint                        `gorm:"primaryKey" json:"-"`
	UserID           string                      `gorm:"uniqueIndex;size:36;not null" json:"userId"`
	TotalTickets     int                         `gorm:"not null" json:"totalTickets"`
	TodayTickets     int                         `gorm:"not null" json:"todayTickets"`
	Streak           int                         `gorm:"not null" json:"streak"`
	CompletedQuizzes datatypes.JSONSlice[string] `json:"completedQuizzes"`
	LastPlayDate     string                      `gorm:"size:10;not null" json:"lastPlayDate"` // YYYY-MM-DD
	UpdatedAt        time.Time                   `json:"-"`
}

type QuizAttempt struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"index;size:36;not null" json:"userId"`
	QuizID        string    `gorm:"index;not null" json:"quizId"`
	IsCorrect     bool      `gorm:"not null" json:"isCorrect"`
	TimeSpent     int64     `gorm:"not null" json:"timeSpent"` // ms
	TicketsEarned int       `gorm:"not null" json:"ticketsEarned"`
	TokensEarned  int       `gorm:"not null" json:"tokensEarned"`
	AnsweredAt    time.Time `gorm:"index;not null" json:"answeredAt"`
}

const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
	TxReward     = "reward"
)

type WalletTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"index;size:36;not null" json:"userId"`
	Type        string          `gorm:"size:16;not null" json:"type"` // deposit | withdrawal | reward
	Amount      decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"amount"`
	Description string          `gorm:"not null" json:"description"`
	Timestamp   time.Time       `gorm:"index;not null" json:"timestamp"`
}

type ClaimedReward struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"index;size:36;not null" json:"userId"`
	RewardName string    `gorm:"not null" json:"rewardName"`
	RewardType string    `gorm:"not null" json:"rewardType"`
	Cost       int       `gorm:"not null" json:"cost"`
	ClaimedAt  time.Time `gorm:"not null" json:"claimedAt"`
}

type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Message     string    `gorm:"not null" json:"message"`
	Type        string    `gorm:"size:8;not null" json:"type"` // success | error | info | warning
	TriggeredBy string    `json:"triggeredBy,omitempty"`
	UserID      *string   `gorm:"index;size:36" json:"userId,omitempty"`
	IsGlobal    bool      `gorm:"not null" json:"isGlobal"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// --- On-chain play ---

type GameSession struct {
	ID             string                    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string                    `gorm:"index;size:36;not null" json:"-"`
	WalletAddress  string                    `gorm:"index;size:42;not null" json:"walletAddress"`
	ChainID        int64                     `gorm:"not null" json:"chainId"`
	State          SessionState              `gorm:"size:16;not null" json:"state"`
	StartTxHash    string                    `gorm:"uniqueIndex;size:66;not null" json:"startTxHash"`
	CompleteTxHash *string                   `gorm:"uniqueIndex;size:66" json:"completeTxHash,omitempty"`
	AmountPaid     string                    `json:"amountPaid"` // wei
	UserAnswer     int64                     `json:"userAnswer"`
	QuizIDs        datatypes.JSONSlice[uint] `json:"quizIds"`
	Answers        datatypes.JSONMap         `json:"answers"` // quiz id -> selected index
	Score          int                       `gorm:"not null" json:"score"`
	FailReason     *string                   `json:"failReason,omitempty"`
	StartedAt      time.Time                 `gorm:"not null" json:"startedAt"`
	FinishedAt     *time.Time                `json:"finishedAt,omitempty"`
	Version        int                       `gorm:"not null;default:0" json:"-"` // bumped on every write
}
