package usecase

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/service"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb/geojson"
)

type DiscoveryUseCase interface {
	// SelectImage はアップロードされた画像を解析対象にする
	SelectImage(data []byte) (model.DisplayState, error)

	// Analyze は選択中の画像からPlaceを解決して表示し、認証済みセッションなら保存する
	Analyze(ctx context.Context) (model.DisplayState, error)

	// ShowSavedPlace はギャラリーのPlaceを表示する
	ShowSavedPlace(id string) (model.DisplayState, error)

	// ResetView はアップロード画面に戻す
	ResetView() model.DisplayState

	// View は現在の表示状態を返す
	View() model.DisplayState

	// Gallery は保存済みPlaceを新しい順に返す
	Gallery() ([]*model.Place, error)

	// GalleryGeoJSON は保存済みPlaceを地図表示用のGeoJSONで返す
	GalleryGeoJSON() (*geojson.FeatureCollection, error)
}

// discoveryUseCaseImpl はDiscoveryUseCaseの実装
type discoveryUseCaseImpl struct {
	resolver service.PlaceResolver
	session  *service.SessionStateMachine
}

// NewDiscoveryUseCase は新しいDiscoveryUseCaseインスタンスを作成
func NewDiscoveryUseCase(resolver service.PlaceResolver, session *service.SessionStateMachine) DiscoveryUseCase {
	return &discoveryUseCaseImpl{
		resolver: resolver,
		session:  session,
	}
}

func (u *discoveryUseCaseImpl) display() *service.SessionContext {
	return u.session.Context()
}

func (u *discoveryUseCaseImpl) SelectImage(data []byte) (model.DisplayState, error) {
	image, err := model.NewImagePayload(data)
	if err != nil {
		log.Printf("⚠️ 画像以外のファイルを拒否: %v", err)
		return u.View(), err
	}
	u.display().SelectImage(image)
	log.Printf("🖼️ 画像を選択: %s (%d bytes)", image.MIMEType, len(image.Data))
	return u.View(), nil
}

func (u *discoveryUseCaseImpl) Analyze(ctx context.Context) (model.DisplayState, error) {
	// 解析と保存はリクエストの切断で中断しない
	ctx = context.WithoutCancel(ctx)
	display := u.display()
	image, token := display.CurrentImage()
	if image == nil {
		return u.View(), model.ErrNoImageSelected
	}
	if !display.BeginAnalysis(token) {
		return u.View(), model.ErrResolutionInProgress
	}

	owner := u.session.UserID()
	log.Printf("🚀 画像解析開始")
	start := time.Now()

	place, err := u.resolver.Resolve(ctx, image)
	if err != nil {
		if errors.Is(err, model.ErrResolutionInProgress) {
			display.EndAnalysis(token)
			return u.View(), err
		}

		message := err.Error()
		var re *model.ResolutionError
		if errors.As(err, &re) {
			message = re.UserMessage()
		}
		display.ShowError(token, message)
		log.Printf("❌ 画像解析に失敗: %v", err)
		return u.View(), err
	}

	if display.ShowResolvedPlace(token, place) {
		log.Printf("✅ 解析完了: %s (%v)", place.Name, time.Since(start))
	} else {
		log.Printf("ℹ️ 表示中の画像が変わったため結果を表示しません: %s", place.Name)
	}

	saved, err := u.session.PersistFor(ctx, owner, place)
	if err != nil {
		display.SetSaveError(token, fmt.Sprintf("Could not save this discovery: %v", err))
	} else if saved {
		log.Printf("💾 発見を保存: %s (+%d points)", place.Name, model.PointsPerDiscovery)
	}

	return u.View(), nil
}

func (u *discoveryUseCaseImpl) ShowSavedPlace(id string) (model.DisplayState, error) {
	if !u.session.CanPersist() {
		return u.View(), model.ErrGalleryLocked
	}
	place, ok := u.display().Places.FindPlace(id)
	if !ok {
		return u.View(), fmt.Errorf("%w: %s", model.ErrPlaceNotFound, id)
	}
	u.display().ShowSavedPlace(place)
	return u.View(), nil
}

func (u *discoveryUseCaseImpl) ResetView() model.DisplayState {
	u.display().Reset()
	return u.View()
}

func (u *discoveryUseCaseImpl) View() model.DisplayState {
	return u.display().Snapshot()
}

func (u *discoveryUseCaseImpl) Gallery() ([]*model.Place, error) {
	if !u.session.CanPersist() {
		return nil, model.ErrGalleryLocked
	}
	return u.display().Places.Gallery(), nil
}

func (u *discoveryUseCaseImpl) GalleryGeoJSON() (*geojson.FeatureCollection, error) {
	places, err := u.Gallery()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range places {
		f := geojson.NewFeature(p.Point())
		f.ID = p.ID
		f.Properties["name"] = p.Name
		f.Properties["createdAt"] = p.CreatedAt.Format(time.RFC3339)
		f.Properties["moreImagesUrl"] = p.MoreImagesURL()
		fc.Append(f)
	}
	return fc, nil
}
