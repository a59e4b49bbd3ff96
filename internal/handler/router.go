package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter はAPIのルーティングを設定したginエンジンを返す
func NewRouter(authHandler *AuthHandler, discoveryHandler *DiscoveryHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.MaxMultipartMemory = maxImageBytes

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "GeoInfo-App"})
	})

	r.GET("/session", authHandler.GetSession)
	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.PostSignUp)
		auth.POST("/signin", authHandler.PostSignIn)
		auth.POST("/signout", authHandler.PostSignOut)
	}

	images := r.Group("/images")
	{
		images.POST("", discoveryHandler.PostImage)
		images.POST("/analyze", discoveryHandler.PostAnalyze)
	}

	r.GET("/view", discoveryHandler.GetView)
	r.POST("/view/reset", discoveryHandler.PostResetView)

	places := r.Group("/places")
	{
		places.GET("", discoveryHandler.GetPlaces)
		places.GET("/geojson", discoveryHandler.GetPlacesGeoJSON)
		places.POST("/:id/show", discoveryHandler.PostShowPlace)
	}

	r.GET("/location", discoveryHandler.GetLocation)

	return r
}
