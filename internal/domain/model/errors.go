package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInferenceFailed 1回目の推論呼び出しが失敗した
	ErrInferenceFailed = errors.New("inference failed")
	// ErrInvalidLocation AIの構造化出力が不正または欠損している
	ErrInvalidLocation = errors.New("invalid location")
	// ErrResolutionInProgress 別の解析が実行中
	ErrResolutionInProgress = errors.New("resolution already in progress")
	// ErrInvalidImage 画像として扱えないアップロード
	ErrInvalidImage = errors.New("invalid image")
	// ErrNoImageSelected 解析対象の画像が選択されていない
	ErrNoImageSelected = errors.New("no image selected")
	// ErrGalleryLocked 認証済みセッション以外でギャラリーを開こうとした
	ErrGalleryLocked = errors.New("gallery requires a verified session")
	// ErrPlaceNotFound キャッシュに該当するPlaceがない
	ErrPlaceNotFound = errors.New("place not found")
)

// InferenceError AIゲートウェイの通信・レスポンス失敗
type InferenceError struct {
	Status  int    // HTTPステータス（通信例外の場合は0）
	Message string
}

func (e *InferenceError) Error() string {
	return e.Message
}

// ResolutionKind Place解決エラーの種別
type ResolutionKind string

const (
	ResolutionInferenceFailed ResolutionKind = "inference_failed"
	ResolutionInvalidLocation ResolutionKind = "invalid_location"
)

// ResolutionError 画像からPlaceへの解決に失敗したことを表す
type ResolutionError struct {
	Kind ResolutionKind
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is errors.Is で種別ごとのセンチネルと比較できるようにする
func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrInferenceFailed:
		return e.Kind == ResolutionInferenceFailed
	case ErrInvalidLocation:
		return e.Kind == ResolutionInvalidLocation
	}
	return false
}

// UserMessage ユーザーに表示するエラーメッセージ
func (e *ResolutionError) UserMessage() string {
	if e.Kind == ResolutionInferenceFailed {
		msg := "Failed to analyze image."
		var ie *InferenceError
		if errors.As(e.Err, &ie) && ie.Message != "" {
			msg += " " + ie.Message
		}
		return msg
	}
	return "Could not identify the landmark or retrieve its details. The image might be unclear or not a known landmark."
}

// WriteError 永続化の失敗（ロールバックはしない）
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// AuthError IDプロバイダーが返したエラー（メッセージはそのままユーザーに表示する）
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError プロバイダーのエラーをAuthErrorに変換する
func NewAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return &AuthError{Message: err.Error(), Err: err}
}
