package usecase

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"GeoInfo-App/internal/domain/service"
	"context"
	"fmt"
	"log"
	"math"
)

type LocationUseCase interface {
	// DetectLocation は現在地を「市区町村, 国」の表示にし、必要なら地図を現在地に合わせる
	DetectLocation(ctx context.Context, loc model.LatLng, showOnMap bool) (model.DisplayState, error)
}

type locationUseCaseImpl struct {
	geocoder repository.GeocodingRepository
	session  *service.SessionContext
}

// NewLocationUseCase は新しいLocationUseCaseインスタンスを作成
func NewLocationUseCase(geocoder repository.GeocodingRepository, session *service.SessionContext) LocationUseCase {
	return &locationUseCaseImpl{
		geocoder: geocoder,
		session:  session,
	}
}

func (u *locationUseCaseImpl) DetectLocation(ctx context.Context, loc model.LatLng, showOnMap bool) (model.DisplayState, error) {
	if !validLatLng(loc) {
		return u.session.Snapshot(), fmt.Errorf("緯度経度が範囲外です: %v,%v", loc.Lat, loc.Lng)
	}

	text := model.MessageLocationNotFound
	addr, err := u.geocoder.ReverseGeocode(ctx, loc)
	if err != nil {
		log.Printf("⚠️ 逆ジオコーディングに失敗: %v", err)
	} else {
		text = fmt.Sprintf("%s, %s", addr.City, addr.Country)
	}

	u.session.SetLocation(text, &loc, showOnMap)
	return u.session.Snapshot(), nil
}

func validLatLng(loc model.LatLng) bool {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180
}
