package main

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// seedProgress creates one named player per row and returns their ids.
func seedProgress(t *testing.T, l *Leaderboard, rows ...UserProgress) map[string]uint {
	t.Helper()
	ids := map[string]uint{}
	for i := range rows {
		name := rows[i].UserID
		u := User{PublicID: "pub-" + name, DisplayName: &name}
		if err := l.db.Create(&u).Error; err != nil {
			t.Fatal(err)
		}
		ids[name] = u.ID
		rows[i].UserID = u.PublicID
		rows[i].CompletedQuizzes = []string{}
		rows[i].LastPlayDate = "2025-01-01"
		if err := l.db.Create(&rows[i]).Error; err != nil {
			t.Fatal(err)
		}
		l.Update(context.Background(), &rows[i])
	}
	return ids
}

func TestLeaderboard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	db := newTestDB(t)
	withRedis := NewLeaderboard(client, db)
	ids := seedProgress(t, withRedis,
		UserProgress{UserID: "alice", TotalTickets: 120, Streak: 1},
		UserProgress{UserID: "bob", TotalTickets: 300, Streak: 0},
		UserProgress{UserID: "carol", TotalTickets: 80, Streak: 5},
	)

	boards := []struct {
		name string
		l    *Leaderboard
	}{
		{"redis", withRedis},
		{"db fallback", NewLeaderboard(nil, db)},
	}
	for _, b := range boards {
		t.Run(b.name, func(t *testing.T) {
			top, err := b.l.Top(ctx, LeaderboardTicketsKey, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(top) != 2 || top[0].PlayerID != ids["bob"] || top[0].DisplayName != "bob" || top[0].Score != 300 ||
				top[1].DisplayName != "alice" || top[1].Rank != 2 {
				t.Errorf("tickets top = %+v", top)
			}

			streak, err := b.l.Top(ctx, LeaderboardStreakKey, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(streak) != 3 || streak[0].PlayerID != ids["carol"] || streak[0].Score != 5 {
				t.Errorf("streak top = %+v", streak)
			}
		})
	}

	if rank, _ := withRedis.Rank(ctx, LeaderboardTicketsKey, ids["carol"]); rank != 3 {
		t.Errorf("carol rank = %d, want 3", rank)
	}
	if rank, _ := withRedis.Rank(ctx, LeaderboardTicketsKey, 999); rank != 0 {
		t.Errorf("unranked player = %d", rank)
	}

	// a broken redis falls back to the table
	mr.Close()
	top, err := withRedis.Top(ctx, LeaderboardTicketsKey, 1)
	if err != nil || len(top) != 1 || top[0].PlayerID != ids["bob"] {
		t.Errorf("fallback top = %+v, %v", top, err)
	}
}

func TestLeaderboardRoute(t *testing.T) {
	_, r := newTestApp(t)
	uid := newUser(t, r)
	doJSON(t, r, http.MethodPut, "/api/v1/progress", map[string]any{
		"totalTickets": 42, "lastPlayDate": "2025-02-01",
	}, as(uid))

	w := doJSON(t, r, http.MethodGet, "/api/v1/leaderboard/tickets?limit=5", nil, as(uid))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[struct {
		Items []LeaderboardEntry `json:"items"`
	}](t, w)
	if len(body.Items) != 1 || body.Items[0].PlayerID == 0 || body.Items[0].Score != 42 {
		t.Errorf("items = %+v", body.Items)
	}
	if strings.Contains(w.Body.String(), uid) {
		t.Errorf("leaderboard exposes the public id: %s", w.Body)
	}

	if w := doJSON(t, r, http.MethodGet, "/api/v1/leaderboard/coins", nil, as(uid)); w.Code != http.StatusNotFound {
		t.Errorf("unknown board = %d", w.Code)
	}
}
