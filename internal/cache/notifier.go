package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/shilkatype/server/internal/models"
)

// LeaderboardChannel carries leaderboard snapshots between server instances
const LeaderboardChannel = "leaderboard_update"

// RedisNotifier invalidates cached views and publishes leaderboard snapshots
type RedisNotifier struct {
	client  *redis.Client
	views   *ViewCache
	channel string
}

// NewRedisNotifier creates a notifier publishing on LeaderboardChannel
func NewRedisNotifier(client *redis.Client, views *ViewCache) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		views:   views,
		channel: LeaderboardChannel,
	}
}

// Invalidate drops every cached view matching pattern
func (n *RedisNotifier) Invalidate(ctx context.Context, pattern string) error {
	_, err := n.views.InvalidatePattern(ctx, pattern)
	return err
}

// PublishLeaderboard sends the snapshot to every subscribed instance
func (n *RedisNotifier) PublishLeaderboard(ctx context.Context, users []models.PublicUser) error {
	if users == nil {
		users = []models.PublicUser{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, raw).Err()
}
