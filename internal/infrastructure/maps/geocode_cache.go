package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// CachedGeocoder はRedisに逆ジオコーディング結果をキャッシュするデコレーター
// Redisの障害時はキャッシュなしで下位のジオコーダーを呼ぶ
type CachedGeocoder struct {
	next   repository.GeocodingRepository
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis はアドレスが空の場合nilを返す
func ConnectRedis(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// NewCachedGeocoder は新しいCachedGeocoderを生成する
func NewCachedGeocoder(next repository.GeocodingRepository, client *redis.Client, ttl time.Duration) *CachedGeocoder {
	return &CachedGeocoder{next: next, client: client, ttl: ttl}
}

var _ repository.GeocodingRepository = (*CachedGeocoder)(nil)

// cacheKey は約11m単位に丸めた座標のキー
func cacheKey(loc model.LatLng) string {
	return fmt.Sprintf("geocode:%.4f:%.4f", loc.Lat, loc.Lng)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, loc model.LatLng) (*repository.Address, error) {
	key := cacheKey(loc)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var addr repository.Address
		if jsonErr := json.Unmarshal(cached, &addr); jsonErr == nil {
			return &addr, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("⚠️ ジオコーディングキャッシュの取得に失敗: %v", err)
	}

	addr, err := c.next.ReverseGeocode(ctx, loc)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(addr); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("⚠️ ジオコーディングキャッシュの保存に失敗: %v", err)
		}
	}
	return addr, nil
}
