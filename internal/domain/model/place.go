package model

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/paulmach/orb"
)

// LatLng 緯度経度を表す基本的な型
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToPoint orbのPointに変換する（orbは [lng, lat] の順）
func (l LatLng) ToPoint() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// Place 画像から特定されたランドマーク1件分の発見記録
type Place struct {
	ID        string    `json:"id,omitempty"` // ドキュメントID（保存前は空）
	Name      string    `json:"name"`         // ランドマーク名
	Latitude  float64   `json:"latitude"`     // 緯度
	Longitude float64   `json:"longitude"`    // 経度
	Info      string    `json:"info"`         // 説明文（HTML）
	ImageURL  string    `json:"imageUrl"`     // 元画像のdata URL
	CreatedAt time.Time `json:"createdAt"`    // 特定日時（ギャラリーの並び順に使用）
}

// LatLng Placeの座標をLatLng型で返す
func (p *Place) LatLng() LatLng {
	return LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

// Point Placeの座標をorb.Pointで返す
func (p *Place) Point() orb.Point {
	return p.LatLng().ToPoint()
}

// MoreImagesURL ランドマーク名で画像検索するURLを返す
func (p *Place) MoreImagesURL() string {
	return "https://www.google.com/search?tbm=isch&q=" + url.QueryEscape(p.Name)
}

// Clone Placeのコピーを返す
func (p *Place) Clone() *Place {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ImagePayload アップロードされた画像データ
type ImagePayload struct {
	MIMEType string
	Data     []byte
}

// NewImagePayload バイト列から画像ペイロードを作成する（画像以外はエラー）
func NewImagePayload(data []byte) (*ImagePayload, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, mtype.String())
	}
	return &ImagePayload{
		MIMEType: mtype.String(),
		Data:     data,
	}, nil
}

// Base64 画像データをBase64文字列で返す
func (i *ImagePayload) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL 画像をdata URL形式で返す
func (i *ImagePayload) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// IsEmpty 画像データが空かどうか
func (i *ImagePayload) IsEmpty() bool {
	return i == nil || len(i.Data) == 0
}
