package repository

import (
	"GeoInfo-App/internal/domain/model"
	"context"
)

// InferenceGateway はマルチモーダルAIへの問い合わせを担当するインターフェース
type InferenceGateway interface {
	// Infer はプロンプトと画像から生成テキストを返す（失敗時は *model.InferenceError）
	Infer(ctx context.Context, prompt string, image *model.ImagePayload) (string, error)
}
