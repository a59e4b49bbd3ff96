package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls int
	err   error
}

func (c *countingGeocoder) ReverseGeocode(ctx context.Context, loc model.LatLng) (*repository.Address, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &repository.Address{City: "Agra", Country: "India"}, nil
}

func TestCachedGeocoderHitsCache(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	next := &countingGeocoder{}
	g := NewCachedGeocoder(next, client, 10*time.Minute)
	ctx := context.Background()
	loc := model.LatLng{Lat: 27.17512, Lng: 78.04213}

	addr, err := g.ReverseGeocode(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "Agra", addr.City)

	// 丸めた座標が同じならキャッシュから返す
	addr, err = g.ReverseGeocode(ctx, model.LatLng{Lat: 27.17514, Lng: 78.04211})
	require.NoError(t, err)
	assert.Equal(t, "India", addr.Country)
	assert.Equal(t, 1, next.calls)

	assert.True(t, s.Exists(cacheKey(loc)))
	assert.Equal(t, 10*time.Minute, s.TTL(cacheKey(loc)))

	s.FastForward(11 * time.Minute)
	_, err = g.ReverseGeocode(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedGeocoderDoesNotCacheErrors(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	next := &countingGeocoder{err: errors.New("boom")}
	g := NewCachedGeocoder(next, client, time.Minute)
	loc := model.LatLng{Lat: 1, Lng: 2}

	_, err := g.ReverseGeocode(context.Background(), loc)
	assert.Error(t, err)
	assert.False(t, s.Exists(cacheKey(loc)))
}

func TestCachedGeocoderFallsBackWhenRedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	s.Close()
	defer client.Close()

	next := &countingGeocoder{}
	g := NewCachedGeocoder(next, client, time.Minute)

	addr, err := g.ReverseGeocode(context.Background(), model.LatLng{Lat: 1, Lng: 2})
	require.NoError(t, err)
	assert.Equal(t, "Agra", addr.City)
	assert.Equal(t, 1, next.calls)
}

func TestConnectRedis(t *testing.T) {
	assert.Nil(t, ConnectRedis("", ""))
	client := ConnectRedis("localhost:6379", "")
	require.NotNil(t, client)
	client.Close()
}
