package main

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	LeaderboardTicketsKey = "leaderboard:tickets"
	LeaderboardStreakKey  = "leaderboard:streak"
)

// LeaderboardEntry names players by their numeric id and display name; the
// public id is a credential and never leaves the owner.
type LeaderboardEntry struct {
	PlayerID    uint   `json:"playerId"`
	DisplayName string `json:"displayName,omitempty"`
	Score       int64  `json:"score"`
	Rank        int64  `json:"rank"`
}

// Leaderboard keeps ticket and streak rankings in redis sorted sets, with the
// user_progress table as the fallback when redis is absent or failing.
type Leaderboard struct {
	client *redis.Client // nil disables redis
	db     *gorm.DB
}

func NewLeaderboard(client *redis.Client, db *gorm.DB) *Leaderboard {
	return &Leaderboard{client: client, db: db}
}

func member(playerID uint) string {
	return strconv.FormatUint(uint64(playerID), 10)
}

// Update mirrors a progress record into both sorted sets. Failures are logged only.
func (l *Leaderboard) Update(ctx context.Context, p *UserProgress) {
	if l == nil || l.client == nil || p == nil {
		return
	}
	var ids []uint
	if err := l.db.Model(&User{}).Where("public_id = ?", p.UserID).Pluck("id", &ids).Error; err != nil || len(ids) == 0 {
		log.Printf("leaderboard update: no user for progress %d: %v", p.ID, err)
		return
	}
	m := member(ids[0])
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, LeaderboardTicketsKey, redis.Z{Score: float64(p.TotalTickets), Member: m})
		pipe.ZAdd(ctx, LeaderboardStreakKey, redis.Z{Score: float64(p.Streak), Member: m})
		return nil
	})
	if err != nil {
		log.Printf("leaderboard update player %s: %v", m, err)
	}
}

func (l *Leaderboard) Top(ctx context.Context, key string, limit int64) ([]LeaderboardEntry, error) {
	if l.client != nil {
		results, err := l.client.ZRevRangeWithScores(ctx, key, 0, limit-1).Result()
		if err == nil {
			return l.fromRedis(results)
		}
		log.Printf("leaderboard redis read failed, using db: %v", err)
	}
	return l.topFromDB(key, limit)
}

func (l *Leaderboard) fromRedis(results []redis.Z) ([]LeaderboardEntry, error) {
	entries := make([]LeaderboardEntry, 0, len(results))
	ids := make([]uint, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseUint(r.Member.(string), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
		entries = append(entries, LeaderboardEntry{
			PlayerID: uint(id),
			Score:    int64(r.Score),
			Rank:     int64(len(entries)) + 1,
		})
	}
	if len(ids) == 0 {
		return entries, nil
	}
	var users []User
	if err := l.db.Select("id", "display_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		if u.DisplayName != nil {
			names[u.ID] = *u.DisplayName
		}
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].PlayerID]
	}
	return entries, nil
}

func (l *Leaderboard) topFromDB(key string, limit int64) ([]LeaderboardEntry, error) {
	col := "total_tickets"
	if key == LeaderboardStreakKey {
		col = "streak"
	}
	var rows []struct {
		PlayerID    uint
		DisplayName *string
		Score       int64
	}
	if err := l.db.Model(&UserProgress{}).
		Select("users.id AS player_id, users.display_name AS display_name, " + col + " AS score").
		Joins("JOIN users ON users.public_id = user_id").
		Order("score DESC, player_id ASC").
		Limit(int(limit)).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = LeaderboardEntry{PlayerID: r.PlayerID, Score: r.Score, Rank: int64(i) + 1}
		if r.DisplayName != nil {
			entries[i].DisplayName = *r.DisplayName
		}
	}
	return entries, nil
}

// Rank returns the player's 1-based rank, or 0 when unranked.
func (l *Leaderboard) Rank(ctx context.Context, key string, playerID uint) (int64, error) {
	if l.client == nil {
		return 0, nil
	}
	rank, err := l.client.ZRevRank(ctx, key, member(playerID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// GET /api/v1/leaderboard/:board  (board = tickets | streak)
func GetLeaderboard(l *Leaderboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		switch c.Param("board") {
		case "tickets":
			key = LeaderboardTicketsKey
		case "streak":
			key = LeaderboardStreakKey
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown leaderboard"})
			return
		}

		limit := int64(10)
		if s := c.Query("limit"); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
				limit = min(n, 100)
			}
		}

		entries, err := l.Top(c.Request.Context(), key, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		resp := gin.H{"items": entries}
		if id := c.GetUint(ctxUserDBID); id != 0 {
			if rank, err := l.Rank(c.Request.Context(), key, id); err == nil && rank > 0 {
				resp["myRank"] = rank
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
