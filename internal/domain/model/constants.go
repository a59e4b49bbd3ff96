package model

// PointsPerDiscovery 保存に成功したPlace1件あたりの付与ポイント
const PointsPerDiscovery = 5

// FallbackPlaceInfo 説明文の生成に失敗したときに使うプレースホルダー
const FallbackPlaceInfo = "<p>Could not retrieve detailed information for this location.</p>"

// 地図表示の定数
const (
	DefaultMapLat   = 20.5937
	DefaultMapLng   = 78.9629
	DefaultMapZoom  = 5
	FocusedMapZoom  = 15
	UserMarkerPopup = "Your Location"
)

// ユーザーに表示する固定メッセージ
const (
	MessageInvalidImage     = "Please upload a valid image file."
	MessageVerifyEmailFirst = "Please verify your email before logging in."
	MessageLocationNotFound = "Location not found"
	UnknownCity             = "Unknown City"
	UnknownCountry          = "Unknown Country"
)

// SubtitleMap セッション状態ごとのサブタイトル
var SubtitleMap = map[SessionState]string{
	SessionAuthenticatedVerified: "Upload an image to identify a place, view it on the map, and learn its history. Click on your username to find your saved discoveries!",
	SessionAnonymous:             "Upload an image to identify a place, view it on the map, and learn its history. Sign up to save your discoveries!",
	SessionUnverifiedOrSignedOut: "Upload an image to identify a place, view it on the map, and learn its history. Sign up to save your discoveries!",
}

// GetSubtitle 状態に対応するサブタイトルを取得する
func GetSubtitle(state SessionState) string {
	if s, ok := SubtitleMap[state]; ok {
		return s
	}
	return SubtitleMap[SessionUnverifiedOrSignedOut]
}

// DefaultDisplayName 表示名が未設定のユーザーの表示名
const DefaultDisplayName = "User"
