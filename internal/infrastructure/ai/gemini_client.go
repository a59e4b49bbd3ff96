package ai

import (
	"GeoInfo-App/internal/domain/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiTimeout = 60 * time.Second
)

// GeminiConfig はGeminiClientの設定
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiClient はGemini APIとの通信を担当するクライアント
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGeminiClient は新しいGeminiClientインスタンスを作成
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	c := &GeminiClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:   strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if c.baseURL == "" {
		c.baseURL = defaultGeminiBaseURL
	}
	if c.model == "" {
		c.model = defaultGeminiModel
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = defaultGeminiTimeout
	}
	return c
}

// GeminiRequest はGemini APIへのリクエスト構造体
type GeminiRequest struct {
	Contents []Content `json:"contents"`
}

// Content はリクエストの内容
type Content struct {
	Parts []Part `json:"parts"`
}

// Part はテキストまたはインライン画像
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData はBase64エンコードされた画像
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GeminiResponse はGemini APIからのレスポンス構造体
type GeminiResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate は生成された候補
type Candidate struct {
	Content Content `json:"content"`
}

// geminiErrorResponse はエラー時のレスポンス構造体
type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Infer はプロンプトと画像をGemini APIに送り、最初の候補のテキストを返す
func (c *GeminiClient) Infer(ctx context.Context, prompt string, image *model.ImagePayload) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &model.InferenceError{Message: "prompt is required"}
	}
	if image.IsEmpty() {
		return "", &model.InferenceError{Message: "image payload is required"}
	}

	req := GeminiRequest{
		Contents: []Content{
			{
				Parts: []Part{
					{Text: prompt},
					{InlineData: &InlineData{MimeType: image.MIMEType, Data: image.Base64()}},
				},
			},
		},
	}
	return c.generate(ctx, req)
}

func (c *GeminiClient) generate(ctx context.Context, req GeminiRequest) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", &model.InferenceError{Message: fmt.Sprintf("リクエストのシリアライズに失敗: %v", err)}
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", &model.InferenceError{Message: fmt.Sprintf("HTTPリクエストの作成に失敗: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// APIキーはURLに載せない（通信エラーの文言にURLが含まれるため）
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("❌ Gemini API呼び出しに失敗: %v", err)
		return "", &model.InferenceError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.InferenceError{Status: resp.StatusCode, Message: fmt.Sprintf("レスポンスの読み取りに失敗: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ie := statusError(resp, body)
		log.Printf("❌ Gemini APIエラー: %s", ie.Message)
		return "", ie
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", &model.InferenceError{Status: resp.StatusCode, Message: fmt.Sprintf("レスポンスのパースに失敗: %v", err)}
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &model.InferenceError{Status: resp.StatusCode, Message: "有効なレスポンスが生成されませんでした"}
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// statusError はHTTPステータスとプロバイダーのエラーメッセージからInferenceErrorを作る
func statusError(resp *http.Response, body []byte) *model.InferenceError {
	msg := fmt.Sprintf("API Error: %s", resp.Status)
	if !strings.Contains(resp.Status, " ") {
		msg = fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg += " - " + errResp.Error.Message
	}
	return &model.InferenceError{Status: resp.StatusCode, Message: msg}
}
