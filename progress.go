package main

import (
	"math"
	"math/rand"
	"slices"
	"time"
)

const (
	answerWindow    = 10 * time.Second
	streakQuizCount = 3 // quizzes per day that extend the streak
	dateLayout      = "2006-01-02"
)

func dayString(t time.Time) string {
	return t.Format(dateLayout)
}

// defaultProgress is what a user who never played sees.
func defaultProgress(userID string, now time.Time) UserProgress {
	return UserProgress{
		UserID:           userID,
		CompletedQuizzes: []string{},
		LastPlayDate:     dayString(now),
	}
}

// ResetIfNewDay clears the daily counters when the last play was on another day.
// Total tickets and the streak survive the reset.
func ResetIfNewDay(p *UserProgress, today string) {
	if p.LastPlayDate == today {
		return
	}
	p.TodayTickets = 0
	p.CompletedQuizzes = []string{}
	p.LastPlayDate = today
}

// ApplyResult folds one answered quiz into the progress record.
func ApplyResult(p *UserProgress, quizID string, isCorrect bool, tickets int, today string) {
	ResetIfNewDay(p, today)

	p.TotalTickets += tickets
	p.TodayTickets += tickets

	if isCorrect && !slices.Contains(p.CompletedQuizzes, quizID) {
		p.CompletedQuizzes = append(p.CompletedQuizzes, quizID)
		if len(p.CompletedQuizzes) == streakQuizCount {
			p.Streak++
		}
	}
}

// TicketsFor scores an answer: faster answers earn more, with a random
// 0.75x..1.25x multiplier. Wrong or late answers earn nothing.
func TicketsFor(isCorrect bool, timeSpent time.Duration, r *rand.Rand) int {
	if !isCorrect || timeSpent > answerWindow {
		return 0
	}
	if timeSpent < 0 {
		timeSpent = 0
	}
	speed := int(timeSpent/time.Second) + 1
	base := max(5, 50-speed*5)
	multiplier := r.Float64()*0.5 + 0.75
	return int(math.Floor(float64(base) * multiplier))
}

// TokensFor converts tickets into QT reward tokens.
func TokensFor(tickets int) int {
	return tickets * 2
}

// AddTickets credits tickets earned outside a single card, e.g. an on-chain session score.
func AddTickets(p *UserProgress, tickets int, today string) {
	ResetIfNewDay(p, today)
	p.TotalTickets += tickets
	p.TodayTickets += tickets
}
