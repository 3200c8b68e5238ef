package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-arena/pkg/arenadto"
	"github.com/redis/go-redis/v9"
)

const (
	keyRecent     = "arena:results"
	keyRoomPrefix = "arena:room:"
)

// RedisRecorder keeps a capped list of recent results plus the last result per room.
type RedisRecorder struct {
	rdb   *redis.Client
	limit int64
	ttl   time.Duration
}

func NewRedisRecorder(redisURL string, limit int, ttl time.Duration) (*RedisRecorder, error) {
	opt, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisRecorderFromClient(rdb, limit, ttl), nil
}

func NewRedisRecorderFromClient(rdb *redis.Client, limit int, ttl time.Duration) *RedisRecorder {
	if limit <= 0 {
		limit = 100
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisRecorder{rdb: rdb, limit: int64(limit), ttl: ttl}
}

func (r *RedisRecorder) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *RedisRecorder) Record(ctx context.Context, res arenadto.MatchResult) error {
	if r == nil || r.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(withPGN(res))
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, keyRecent, raw)
	pipe.LTrim(ctx, keyRecent, 0, r.limit-1)
	pipe.Expire(ctx, keyRecent, r.ttl)
	if res.RoomID != "" {
		pipe.Set(ctx, keyRoomPrefix+res.RoomID+":last", raw, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRecorder) Recent(ctx context.Context, n int) ([]arenadto.MatchResult, error) {
	if n <= 0 || int64(n) > r.limit {
		n = int(r.limit)
	}
	raws, err := r.rdb.LRange(ctx, keyRecent, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]arenadto.MatchResult, 0, len(raws))
	for _, s := range raws {
		var res arenadto.MatchResult
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}

// LastForRoom returns nil when the room has no recorded result.
func (r *RedisRecorder) LastForRoom(ctx context.Context, roomID string) (*arenadto.MatchResult, error) {
	raw, err := r.rdb.Get(ctx, keyRoomPrefix+roomID+":last").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res arenadto.MatchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
