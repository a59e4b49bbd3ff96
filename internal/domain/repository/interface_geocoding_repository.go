package repository

import (
	"GeoInfo-App/internal/domain/model"
	"context"
)

// Address は逆ジオコーディングの結果
type Address struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// GeocodingRepository は緯度経度から住所を取得するインターフェース
type GeocodingRepository interface {
	ReverseGeocode(ctx context.Context, loc model.LatLng) (*Address, error)
}
