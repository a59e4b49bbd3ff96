package service

import (
	"GeoInfo-App/internal/domain/model"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geo"
)

// SessionContext はセッション単位の表示状態（画像・結果パネル・地図）とPlace同期を束ねる
type SessionContext struct {
	Places *PlaceStoreSync

	mu        sync.Mutex
	image     *model.ImagePayload
	token     string // 画像選択ごとに更新される表示トークン
	analyzing bool
	place     *model.Place
	errMsg    string
	saveErr   string
	location  string
	userLoc   *model.LatLng
	mapView   model.MapView
}

// NewSessionContext は新しいSessionContextインスタンスを作成
func NewSessionContext(places *PlaceStoreSync) *SessionContext {
	return &SessionContext{
		Places:  places,
		mapView: model.NewMapView(),
	}
}

// SelectImage は解析対象の画像を差し替え、結果パネルをリセットする
// 実行中の解析結果は以後表示されない
func (c *SessionContext) SelectImage(image *model.ImagePayload) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = image
	c.token = uuid.NewString()
	c.analyzing = false
	c.place = nil
	c.errMsg = ""
	c.saveErr = ""
	return c.token
}

// CurrentImage は選択中の画像と表示トークンを返す
func (c *SessionContext) CurrentImage() (*model.ImagePayload, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image, c.token
}

// BeginAnalysis は解析中の表示に切り替える
// 同じ画像を解析中、またはトークンが古い場合はfalseを返す
func (c *SessionContext) BeginAnalysis(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token || c.analyzing {
		return false
	}
	c.analyzing = true
	c.errMsg = ""
	c.saveErr = ""
	return true
}

// EndAnalysis は結果を表示せずに解析中の表示を解除する
func (c *SessionContext) EndAnalysis(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.analyzing = false
	}
}

// ShowResolvedPlace は解析結果を表示する。トークンが古い場合は何もしない
func (c *SessionContext) ShowResolvedPlace(token string, place *model.Place) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token {
		return false
	}
	c.showPlaceLocked(place)
	return true
}

// ShowSavedPlace はギャラリーから選んだPlaceを表示する
func (c *SessionContext) ShowSavedPlace(place *model.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = uuid.NewString()
	c.image = nil
	c.saveErr = ""
	c.showPlaceLocked(place)
}

func (c *SessionContext) showPlaceLocked(place *model.Place) {
	c.analyzing = false
	c.errMsg = ""
	c.place = place.Clone()
	c.mapView.FocusLandmark(place)
}

// ShowError はエラーバナーを表示し、結果を隠す（再解析可能な状態に戻す）
func (c *SessionContext) ShowError(token, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token {
		return false
	}
	c.analyzing = false
	c.place = nil
	c.errMsg = message
	return true
}

// SetSaveError は保存失敗を記録する（表示中の結果はそのまま）
func (c *SessionContext) SetSaveError(token, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token {
		return
	}
	c.saveErr = message
}

// SetLocation は現在地の表示テキストを更新し、必要なら地図を現在地に合わせる
func (c *SessionContext) SetLocation(text string, loc *model.LatLng, showOnMap bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = text
	if loc == nil {
		return
	}
	l := *loc
	c.userLoc = &l
	if showOnMap {
		c.mapView.FocusUser(l)
	}
}

// Reset はアップロード画面に戻す（ホームリンク・サインアウト）
func (c *SessionContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = nil
	c.token = uuid.NewString()
	c.analyzing = false
	c.place = nil
	c.errMsg = ""
	c.saveErr = ""
}

// Snapshot は現在の表示状態のコピーを返す
func (c *SessionContext) Snapshot() model.DisplayState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := model.DisplayState{
		HasImage:   c.image != nil,
		Analyzing:  c.analyzing,
		CanAnalyze: c.image != nil && !c.analyzing && c.place == nil,
		Error:      c.errMsg,
		SaveError:  c.saveErr,
		Location:   c.location,
		Map:        c.mapView,
	}
	if c.image != nil {
		state.ImageURL = c.image.DataURL()
	}
	if c.place != nil {
		state.Place = c.place.Clone()
		state.ImageURL = c.place.ImageURL
		state.MoreImagesURL = c.place.MoreImagesURL()
		if c.userLoc != nil {
			state.DistanceKm = geo.Distance(c.userLoc.ToPoint(), c.place.Point()) / 1000
		}
	}
	if c.mapView.LandmarkMarker != nil {
		m := *c.mapView.LandmarkMarker
		state.Map.LandmarkMarker = &m
	}
	if c.mapView.UserMarker != nil {
		m := *c.mapView.UserMarker
		state.Map.UserMarker = &m
	}
	return state
}
