package handler

import (
	"GeoInfo-App/internal/domain/model"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationError はリクエストのバリデーションエラー
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// errorResponse はエラー種別からHTTPステータス・エラーコード・表示メッセージを決める
func errorResponse(err error) (int, string, string) {
	var (
		re *model.ResolutionError
		ae *model.AuthError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_error", ve.Error()
	case errors.As(err, &ae):
		return http.StatusBadRequest, "auth_error", ae.Message
	case errors.Is(err, model.ErrResolutionInProgress):
		return http.StatusConflict, "resolution_in_progress", "An analysis is already running."
	case errors.As(err, &re):
		return http.StatusUnprocessableEntity, string(re.Kind), re.UserMessage()
	case errors.Is(err, model.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image", model.MessageInvalidImage
	case errors.Is(err, model.ErrNoImageSelected):
		return http.StatusBadRequest, "no_image_selected", "Select an image first."
	case errors.Is(err, model.ErrGalleryLocked):
		return http.StatusForbidden, "gallery_locked", "Please log in to see your saved places."
	case errors.Is(err, model.ErrPlaceNotFound):
		return http.StatusNotFound, "place_not_found", err.Error()
	}
	return http.StatusInternalServerError, "internal_error", err.Error()
}

// respondError はエラーレスポンスを返す。extraがあればボディに追加する
func respondError(c *gin.Context, err error, extra gin.H) {
	status, code, message := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	body := gin.H{"error": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
