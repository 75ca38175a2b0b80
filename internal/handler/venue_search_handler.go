package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/usecase"
)

// VenueSearchHandler は施設検索APIのハンドラー
type VenueSearchHandler struct {
	searchUseCase usecase.VenueSearchUseCase
}

// NewVenueSearchHandler は新しいVenueSearchHandlerインスタンスを作成
func NewVenueSearchHandler(searchUseCase usecase.VenueSearchUseCase) *VenueSearchHandler {
	return &VenueSearchHandler{
		searchUseCase: searchUseCase,
	}
}

// RegisterRoutes はルーティングを登録する
func (h *VenueSearchHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.GetHealth)
	api.GET("/venues/search", h.SearchVenues)
	api.GET("/venues/:place_id", h.GetVenueDetails)
	api.POST("/admin/tile-cache/purge", h.PurgeTileCache)
}

// SearchVenues は周辺の施設を検索するエンドポイント
// GET /api/venues/search?lat=&lng=&radius=
func (h *VenueSearchHandler) SearchVenues(c *gin.Context) {
	var req model.SearchRequest

	// クエリパラメータのバインド
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "リクエストの形式が正しくありません",
			"details": err.Error(),
		})
		return
	}

	result, err := h.searchUseCase.Search(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "施設検索に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetVenueDetails は施設の詳細を取得するエンドポイント
// GET /api/venues/:place_id
func (h *VenueSearchHandler) GetVenueDetails(c *gin.Context) {
	details, err := h.searchUseCase.GetVenueDetails(c.Request.Context(), c.Param("place_id"))
	if err != nil {
		h.respondError(c, "施設詳細の取得に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// PurgeTileCache は期限切れのタイルキャッシュを削除するエンドポイント
// POST /api/admin/tile-cache/purge
func (h *VenueSearchHandler) PurgeTileCache(c *gin.Context) {
	deleted, err := h.searchUseCase.PurgeTileCache(c.Request.Context())
	if err != nil {
		h.respondError(c, "タイルキャッシュの削除に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetHealth はキャッシュストアを含めたヘルスチェック
// GET /api/health
func (h *VenueSearchHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.searchUseCase.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "unhealthy",
			"service":    "GymSearch-App",
			"tile_cache": "unreachable",
			"details":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "GymSearch-App",
		"tile_cache": "ok",
	})
}

// respondError はエラーの種類に応じたステータスコードで返す
func (h *VenueSearchHandler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidSearchRequest):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrVenueNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrMissingAPIKey):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
