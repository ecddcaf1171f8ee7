// Package invalidation はミューテーション後のキャッシュ無効化通知を配信する。
//
// 通知はRedisのPub/Subで呼び出し元ごとのチャンネル（<prefix>:<caller>）に送られ、
// クライアント側のデータ取得キャッシュが該当キーを破棄するために使う。
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeaderName はレスポンスで無効化キーを返すHTTPヘッダー名。
const HeaderName = "X-Invalidate-Keys"

// UsersKey はユーザー一覧のキャッシュキー。
const UsersKey = "users"

// UserKeys はユーザー一覧と各ユーザーのキャッシュキーを返す。
func UserKeys(ids ...string) []string {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, UsersKey)
	for _, id := range ids {
		keys = append(keys, UsersKey+":"+id)
	}
	return keys
}

// HeaderValue はキー一覧をヘッダー値（カンマ区切り）に変換する。
func HeaderValue(keys []string) string {
	return strings.Join(keys, ",")
}

// Message は配信される無効化通知。
type Message struct {
	CallerID string    `json:"caller_id"`
	Keys     []string  `json:"keys"`
	At       time.Time `json:"at"`
}

// Publisher は無効化通知の配信インターフェース。
type Publisher interface {
	Publish(ctx context.Context, callerID string, keys []string) error
}

// Noop は通知を配信しないPublisher。REDIS_URL未設定時に使う。
type Noop struct{}

// Publish は何もしない。
func (Noop) Publish(ctx context.Context, callerID string, keys []string) error {
	return nil
}

// RedisPublisher はRedisのPUBLISHで通知を配信する。
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisPublisher はRedisに接続し、疎通確認を行ってからRedisPublisherを返す。
func NewRedisPublisher(url, channelPrefix string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	p := newRedisPublisher(redis.NewClient(opts), channelPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return p, nil
}

func newRedisPublisher(rdb *redis.Client, channelPrefix string) *RedisPublisher {
	return &RedisPublisher{
		rdb:    rdb,
		prefix: channelPrefix,
		now:    time.Now,
	}
}

// Channel は呼び出し元の通知チャンネル名を返す。
func (p *RedisPublisher) Channel(callerID string) string {
	return p.prefix + ":" + callerID
}

// Publish は呼び出し元のチャンネルに無効化通知を送る。
func (p *RedisPublisher) Publish(ctx context.Context, callerID string, keys []string) error {
	payload, err := json.Marshal(Message{
		CallerID: callerID,
		Keys:     keys,
		At:       p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode invalidation message: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.Channel(callerID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close はRedis接続を閉じる。
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
