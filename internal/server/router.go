package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/dicomweb-backend/internal/handlers"
)

type RouterConfig struct {
	SearchHandler   *handlers.SearchHandler
	RetrieveHandler *handlers.RetrieveHandler
	StoreHandler    *handlers.StoreHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Content-Type"},
		ExposeHeaders: []string{"Content-Type"},
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	// Search
	router.GET("/studies", cfg.SearchHandler.SearchStudies)
	router.GET("/series", cfg.SearchHandler.SearchSeries)
	router.GET("/instances", cfg.SearchHandler.SearchInstances)
	router.GET("/studies/:study/series", cfg.SearchHandler.SearchSeries)
	router.GET("/studies/:study/instances", cfg.SearchHandler.SearchInstances)
	router.GET("/studies/:study/series/:series/instances", cfg.SearchHandler.SearchInstances)

	// Retrieve
	router.GET("/studies/:study", cfg.RetrieveHandler.RetrieveInstances)
	router.GET("/studies/:study/metadata", cfg.RetrieveHandler.RetrieveMetadata)
	router.GET("/studies/:study/rendered", cfg.RetrieveHandler.RetrieveRendered)
	router.GET("/studies/:study/thumbnail", cfg.RetrieveHandler.RetrieveThumbnail)
	router.GET("/studies/:study/series/:series", cfg.RetrieveHandler.RetrieveInstances)
	router.GET("/studies/:study/series/:series/metadata", cfg.RetrieveHandler.RetrieveMetadata)
	router.GET("/studies/:study/series/:series/rendered", cfg.RetrieveHandler.RetrieveRendered)
	router.GET("/studies/:study/series/:series/thumbnail", cfg.RetrieveHandler.RetrieveThumbnail)
	router.GET("/studies/:study/series/:series/instances/:instance", cfg.RetrieveHandler.RetrieveInstances)
	router.GET("/studies/:study/series/:series/instances/:instance/metadata", cfg.RetrieveHandler.RetrieveMetadata)
	router.GET("/studies/:study/series/:series/instances/:instance/frames/:frames", cfg.RetrieveHandler.RetrieveFrames)
	router.GET("/studies/:study/series/:series/instances/:instance/rendered", cfg.RetrieveHandler.RetrieveRendered)
	router.GET("/studies/:study/series/:series/instances/:instance/thumbnail", cfg.RetrieveHandler.RetrieveThumbnail)

	// Store
	router.POST("/studies", cfg.StoreHandler.StoreInstances)
	router.POST("/studies/:study", cfg.StoreHandler.StoreInstances)

	return router
}
