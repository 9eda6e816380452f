package main

import (
	"math/rand"
	"slices"
	"time"
)

func drawQuestions(allIDs []uint, count int, seed *int64) []uint {
	var r *rand.Rand
	if seed != nil {
		r = rand.New(rand.NewSource(*seed))
	} else {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	out := append([]uint(nil), allIDs...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if count > len(out) {
		count = len(out)
	}
	return out[:count]
}

// isCorrectAnswer reports whether selected is the quiz's correct option.
// A nil selection (timer ran out) is never correct.
func isCorrectAnswer(q Quiz, selected *int) bool {
	if selected == nil || *selected < 0 || *selected >= len(q.Options) {
		return false
	}
	return *selected == q.CorrectAnswer
}

// orderQuizzes returns quizzes in the order of ids, skipping missing ones.
func orderQuizzes(ids []uint, qs []Quiz) []Quiz {
	out := make([]Quiz, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(qs, func(q Quiz) bool { return q.ID == id })
		if i >= 0 {
			out = append(out, qs[i])
		}
	}
	return out
}
