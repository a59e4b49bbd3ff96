package handler

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/usecase"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// maxImageBytes はアップロード画像の上限
const maxImageBytes = 10 << 20

// DiscoveryHandler は画像解析・表示・ギャラリーAPIのハンドラー
type DiscoveryHandler struct {
	discoveryUseCase usecase.DiscoveryUseCase
	locationUseCase  usecase.LocationUseCase
}

// NewDiscoveryHandler は新しいDiscoveryHandlerインスタンスを作成
func NewDiscoveryHandler(discoveryUseCase usecase.DiscoveryUseCase, locationUseCase usecase.LocationUseCase) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryUseCase: discoveryUseCase,
		locationUseCase:  locationUseCase,
	}
}

// PostImage は解析する画像をアップロードする（multipartのimageフィールド）
// POST /images
func (h *DiscoveryHandler) PostImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, &ValidationError{Field: "image", Message: "image file is required"}, nil)
		return
	}
	if fileHeader.Size > maxImageBytes {
		respondError(c, &ValidationError{Field: "image", Message: "image is too large"}, nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		respondError(c, err, nil)
		return
	}

	view, err := h.discoveryUseCase.SelectImage(data)
	if err != nil {
		respondError(c, err, gin.H{"view": view})
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostAnalyze は選択中の画像を解析する
// POST /images/analyze
func (h *DiscoveryHandler) PostAnalyze(c *gin.Context) {
	view, err := h.discoveryUseCase.Analyze(c.Request.Context())
	if err != nil {
		respondError(c, err, gin.H{"view": view})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetView は結果パネルと地図の表示状態を返す
// GET /view
func (h *DiscoveryHandler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.discoveryUseCase.View())
}

// PostResetView はアップロード画面に戻す
// POST /view/reset
func (h *DiscoveryHandler) PostResetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.discoveryUseCase.ResetView())
}

// GetPlaces は保存済みPlaceを新しい順に返す
// GET /places
func (h *DiscoveryHandler) GetPlaces(c *gin.Context) {
	places, err := h.discoveryUseCase.Gallery()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"places": places,
		"count":  len(places),
	})
}

// GetPlacesGeoJSON は保存済みPlaceをGeoJSONで返す
// GET /places/geojson
func (h *DiscoveryHandler) GetPlacesGeoJSON(c *gin.Context) {
	fc, err := h.discoveryUseCase.GalleryGeoJSON()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

// PostShowPlace はギャラリーのPlaceを表示する
// POST /places/:id/show
func (h *DiscoveryHandler) PostShowPlace(c *gin.Context) {
	view, err := h.discoveryUseCase.ShowSavedPlace(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetLocation は現在地の表示テキストを更新する
// GET /location?lat=&lon=&show=
func (h *DiscoveryHandler) GetLocation(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		respondError(c, &ValidationError{Field: "lat", Message: "緯度は数値で指定してください"}, nil)
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		respondError(c, &ValidationError{Field: "lon", Message: "経度は数値で指定してください"}, nil)
		return
	}
	if lat < -90 || lat > 90 {
		respondError(c, &ValidationError{Field: "lat", Message: "緯度は-90から90の範囲で指定してください"}, nil)
		return
	}
	if lon < -180 || lon > 180 {
		respondError(c, &ValidationError{Field: "lon", Message: "経度は-180から180の範囲で指定してください"}, nil)
		return
	}
	show, _ := strconv.ParseBool(c.DefaultQuery("show", "false"))

	view, err := h.locationUseCase.DetectLocation(c.Request.Context(), model.LatLng{Lat: lat, Lng: lon}, show)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}
