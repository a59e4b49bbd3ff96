package model

import "github.com/paulmach/orb"

// Marker 地図上のマーカー
type Marker struct {
	Point orb.Point `json:"point"` // [lng, lat]
	Popup string    `json:"popup"`
}

// MapView 地図ウィジェットの状態
type MapView struct {
	Center         orb.Point `json:"center"` // [lng, lat]
	Zoom           int       `json:"zoom"`
	LandmarkMarker *Marker   `json:"landmarkMarker,omitempty"`
	UserMarker     *Marker   `json:"userMarker,omitempty"`
}

// NewMapView 初期表示（インド中心）の地図状態を作成する
func NewMapView() MapView {
	return MapView{
		Center: orb.Point{DefaultMapLng, DefaultMapLat},
		Zoom:   DefaultMapZoom,
	}
}

// FocusLandmark ランドマークに視点を合わせ、マーカーを差し替える
func (m *MapView) FocusLandmark(p *Place) {
	m.Center = p.Point()
	m.Zoom = FocusedMapZoom
	m.LandmarkMarker = &Marker{Point: p.Point(), Popup: p.Name}
}

// FocusUser 現在地に視点を合わせ、現在地マーカーを差し替える
func (m *MapView) FocusUser(loc LatLng) {
	m.Center = loc.ToPoint()
	m.Zoom = FocusedMapZoom
	m.UserMarker = &Marker{Point: loc.ToPoint(), Popup: UserMarkerPopup}
}

// DisplayState 結果パネルの表示状態
type DisplayState struct {
	HasImage      bool    `json:"hasImage"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	Analyzing     bool    `json:"analyzing"`
	CanAnalyze    bool    `json:"canAnalyze"`
	Place         *Place  `json:"place,omitempty"`
	MoreImagesURL string  `json:"moreImagesUrl,omitempty"`
	Error         string  `json:"error,omitempty"`
	SaveError     string  `json:"saveError,omitempty"`
	Location      string  `json:"location,omitempty"`
	DistanceKm    float64 `json:"distanceKm,omitempty"` // 現在地からランドマークまでの距離
	Map           MapView `json:"map"`
}
