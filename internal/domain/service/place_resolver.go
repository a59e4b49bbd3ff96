package service

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

// LocationPrompt はランドマークの名前と座標をJSONで返させるプロンプト
const LocationPrompt = "Identify the landmark in this image. Provide only a JSON object with 'name', 'latitude', and 'longitude'. Example: {\"name\": \"Eiffel Tower\", \"latitude\": 48.8584, \"longitude\": 2.2945}"

// BuildDescriptionPrompt はランドマークの説明文を生成させるプロンプトを構築
func BuildDescriptionPrompt(name string) string {
	return fmt.Sprintf("Provide a detailed, engaging description of the history, architecture, and significance of %s. Format it as clean HTML paragraphs.", name)
}

// PlaceResolver は画像からPlaceを解決する2段階パイプライン
type PlaceResolver interface {
	Resolve(ctx context.Context, image *model.ImagePayload) (*model.Place, error)
}

type placeResolverImpl struct {
	gateway  repository.InferenceGateway
	now      func() time.Time
	inFlight atomic.Bool
}

// NewPlaceResolver は新しいPlaceResolverインスタンスを作成
func NewPlaceResolver(gateway repository.InferenceGateway) PlaceResolver {
	return newPlaceResolver(gateway, time.Now)
}

func newPlaceResolver(gateway repository.InferenceGateway, now func() time.Time) *placeResolverImpl {
	return &placeResolverImpl{
		gateway: gateway,
		now:     now,
	}
}

// locationResult は1段階目のAI応答
type locationResult struct {
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Resolve は位置特定→説明文生成の順で推論し、検証済みのPlaceを返す
func (r *placeResolverImpl) Resolve(ctx context.Context, image *model.ImagePayload) (*model.Place, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, model.ErrResolutionInProgress
	}
	defer r.inFlight.Store(false)

	if image.IsEmpty() {
		return nil, &model.ResolutionError{
			Kind: model.ResolutionInferenceFailed,
			Err:  &model.InferenceError{Message: "image payload is required"},
		}
	}
	log.Printf("🔍 ランドマーク特定開始 (%s, %d bytes)", image.MIMEType, len(image.Data))

	// Step 1: 位置の特定
	raw, err := r.gateway.Infer(ctx, LocationPrompt, image)
	if err != nil {
		log.Printf("❌ 位置特定の推論に失敗: %v", err)
		return nil, &model.ResolutionError{Kind: model.ResolutionInferenceFailed, Err: err}
	}

	name, lat, lng, err := parseLocation(raw)
	if err != nil {
		log.Printf("❌ AIの位置情報が不正: %v", err)
		return nil, &model.ResolutionError{Kind: model.ResolutionInvalidLocation, Err: err}
	}
	log.Printf("✅ ランドマーク特定: %s (%f, %f)", name, lat, lng)

	// Step 2: 説明文の生成（失敗してもフォールバックで続行）
	info := model.FallbackPlaceInfo
	text, err := r.gateway.Infer(ctx, BuildDescriptionPrompt(name), image)
	if err != nil {
		log.Printf("⚠️ 説明文の生成に失敗、フォールバック使用: %v", err)
	} else if cleaned := StripCodeFence(text, "html"); cleaned != "" {
		info = cleaned
	}

	return &model.Place{
		Name:      name,
		Latitude:  lat,
		Longitude: lng,
		Info:      info,
		ImageURL:  image.DataURL(),
		CreatedAt: r.now(),
	}, nil
}

// parseLocation はコードフェンスを除去してJSONを解析し、名前と座標を検証する
func parseLocation(raw string) (string, float64, float64, error) {
	var loc locationResult
	if err := json.Unmarshal([]byte(StripCodeFence(raw, "json")), &loc); err != nil {
		return "", 0, 0, fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	if loc.Name == nil || strings.TrimSpace(*loc.Name) == "" {
		return "", 0, 0, fmt.Errorf("nameがありません")
	}
	if !validCoordinate(loc.Latitude, 90) {
		return "", 0, 0, fmt.Errorf("latitudeが不正です")
	}
	if !validCoordinate(loc.Longitude, 180) {
		return "", 0, 0, fmt.Errorf("longitudeが不正です")
	}
	return *loc.Name, *loc.Latitude, *loc.Longitude, nil
}

// validCoordinate は座標が存在し有限かつ範囲内であることを確認する
// 0は欠損として扱う（赤道・本初子午線上のランドマークは拒否される）
func validCoordinate(v *float64, limit float64) bool {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	if *v == 0 {
		return false
	}
	return *v >= -limit && *v <= limit
}

// StripCodeFence は ```lang と ``` をすべて取り除いて前後の空白を削る
func StripCodeFence(s, lang string) string {
	if lang != "" {
		s = strings.ReplaceAll(s, "```"+lang, "")
	}
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
