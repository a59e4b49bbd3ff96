package ai

import (
	"GeoInfo-App/internal/domain/model"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *model.ImagePayload {
	return &model.ImagePayload{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestGeminiClientInfer(t *testing.T) {
	t.Run("プロンプトと画像を送信し最初の候補を返す", func(t *testing.T) {
		var got GeminiRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/test-model:generateContent", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
			assert.Empty(t, r.URL.RawQuery)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []any{
					map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": "hello"}}}},
				},
			})
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "secret", BaseURL: server.URL, Model: "test-model"})
		text, err := client.Infer(context.Background(), "identify", testImage())
		require.NoError(t, err)
		assert.Equal(t, "hello", text)

		require.Len(t, got.Contents, 1)
		require.Len(t, got.Contents[0].Parts, 2)
		assert.Equal(t, "identify", got.Contents[0].Parts[0].Text)
		require.NotNil(t, got.Contents[0].Parts[1].InlineData)
		assert.Equal(t, "image/png", got.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, testImage().Base64(), got.Contents[0].Parts[1].InlineData.Data)
	})

	t.Run("エラーステータスはステータスとプロバイダーのメッセージを含む", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "bad", BaseURL: server.URL})
		_, err := client.Infer(context.Background(), "identify", testImage())

		var ie *model.InferenceError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, http.StatusBadRequest, ie.Status)
		assert.Equal(t, "API Error: 400 Bad Request - API key not valid", ie.Message)
	})

	t.Run("構造化されていないエラーボディ", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream down"))
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Infer(context.Background(), "identify", testImage())

		var ie *model.InferenceError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, http.StatusServiceUnavailable, ie.Status)
		assert.Equal(t, "API Error: 503 Service Unavailable", ie.Message)
	})

	t.Run("不正なJSONは通信例外として扱う", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Infer(context.Background(), "identify", testImage())

		var ie *model.InferenceError
		require.True(t, errors.As(err, &ie))
		assert.NotEmpty(t, ie.Message)
	})

	t.Run("候補が空", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Infer(context.Background(), "identify", testImage())
		assert.Error(t, err)
	})

	t.Run("接続失敗", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "SUPERSECRETKEY", BaseURL: url})
		_, err := client.Infer(context.Background(), "identify", testImage())

		var ie *model.InferenceError
		require.True(t, errors.As(err, &ie))
		assert.Zero(t, ie.Status)
		assert.NotContains(t, ie.Message, "SUPERSECRETKEY")

		re := &model.ResolutionError{Kind: model.ResolutionInferenceFailed, Err: err}
		assert.NotContains(t, re.UserMessage(), "SUPERSECRETKEY")
	})

	t.Run("入力不足の場合は通信しない", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		}))
		defer server.Close()

		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Infer(context.Background(), "", testImage())
		assert.Error(t, err)
		_, err = client.Infer(context.Background(), "identify", nil)
		assert.Error(t, err)
		_, err = client.Infer(context.Background(), "identify", &model.ImagePayload{MIMEType: "image/png"})
		assert.Error(t, err)
		assert.Zero(t, calls)
	})
}
