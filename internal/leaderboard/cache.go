package leaderboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/zscore-fintech/zscore-engine/internal/cache"
)

// LeaderboardCache provides caching for leaderboard data
type LeaderboardCache struct {
	cache *cache.Cache
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		cache: cache.NewCache(ttl),
	}
}

func (lc *LeaderboardCache) generateCacheKey(limit int) string {
	return fmt.Sprintf("leaderboard:%d", limit)
}

// GetLeaderboard retrieves cached leaderboard data
func (lc *LeaderboardCache) GetLeaderboard(limit int) (*Response, bool) {
	data, found := lc.cache.Get(lc.generateCacheKey(limit))
	if !found {
		return nil, false
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard data", "error", err, "limit", limit)
		return nil, false
	}
	return &response, true
}

// SetLeaderboard caches leaderboard data
func (lc *LeaderboardCache) SetLeaderboard(limit int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard data for cache", "error", err, "limit", limit)
		return
	}
	lc.cache.Set(lc.generateCacheKey(limit), data)
}

// Invalidate drops every cached leaderboard view.
func (lc *LeaderboardCache) Invalidate() {
	lc.cache.Clear()
}
