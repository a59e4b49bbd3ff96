package handler

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/usecase"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthHandler はセッション・認証APIのハンドラー
type AuthHandler struct {
	authUseCase usecase.AuthUseCase
}

// NewAuthHandler は新しいAuthHandlerインスタンスを作成
func NewAuthHandler(authUseCase usecase.AuthUseCase) *AuthHandler {
	return &AuthHandler{authUseCase: authUseCase}
}

// SignUpRequest はサインアップのリクエスト
type SignUpRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignInRequest はサインインのリクエスト
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GetSession は現在のセッション状態を返す
// GET /session
func (h *AuthHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.authUseCase.Session())
}

// PostSignUp はアカウントを作成し、確認メールを送る
// POST /auth/signup
func (h *AuthHandler) PostSignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		respondError(c, &ValidationError{Field: "username", Message: "username is required"}, nil)
		return
	}

	view, err := h.authUseCase.SignUp(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		respondError(c, err, gin.H{"session": view})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session": view,
		"message": "Sign up successful! Please check your email to verify your account.",
	})
}

// PostSignIn はサインインする（メール未認証は401）
// POST /auth/signin
func (h *AuthHandler) PostSignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}

	view, err := h.authUseCase.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var ae *model.AuthError
		if errors.As(err, &ae) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "auth_error", "message": ae.Message, "session": view})
			return
		}
		respondError(c, err, gin.H{"session": view})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

// PostSignOut はサインアウトして匿名セッションに戻る
// POST /auth/signout
func (h *AuthHandler) PostSignOut(c *gin.Context) {
	view, err := h.authUseCase.SignOut(c.Request.Context())
	if err != nil {
		respondError(c, err, gin.H{"session": view})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}
