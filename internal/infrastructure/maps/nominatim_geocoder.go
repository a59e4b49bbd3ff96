package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
)

const (
	defaultNominatimBaseURL   = "https://nominatim.openstreetmap.org"
	defaultNominatimUserAgent = "GeoInfo-App/1.0"
)

// NominatimGeocoder はOpenStreetMap Nominatimを使用した逆ジオコーディングの実装
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimGeocoder は新しいジオコーダーを生成する
func NewNominatimGeocoder(baseURL, userAgent string) *NominatimGeocoder {
	g := &NominatimGeocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if g.baseURL == "" {
		g.baseURL = defaultNominatimBaseURL
	}
	if g.userAgent == "" {
		g.userAgent = defaultNominatimUserAgent
	}
	return g
}

var _ repository.GeocodingRepository = (*NominatimGeocoder)(nil)

// nominatimResponse は/reverseのレスポンス
type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// ReverseGeocode は緯度経度から市区町村名と国名を取得する
func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, loc model.LatLng) (*repository.Address, error) {
	// 1. APIリクエストURLを構築
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	reqURL := g.baseURL + "/reverse?" + params.Encode()

	// 2. HTTPリクエストを作成・実行
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	// Nominatimの利用規約でUser-Agentが必須
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	// 3. JSONレスポンスをパース
	var apiResp nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("逆ジオコーディングに失敗: %s", apiResp.Error)
	}

	// 4. ドメインモデルに変換して返す
	return &repository.Address{
		City:    firstNonEmpty(apiResp.Address.City, apiResp.Address.Town, apiResp.Address.Village, model.UnknownCity),
		Country: firstNonEmpty(apiResp.Address.Country, model.UnknownCountry),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
