package main

import (
	"fmt"
	"os"

	"github.com/yungbote/dicomweb-backend/internal/db"
	"github.com/yungbote/dicomweb-backend/internal/handlers"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/server"
	"github.com/yungbote/dicomweb-backend/internal/services"
	"github.com/yungbote/dicomweb-backend/internal/storage"
	"github.com/yungbote/dicomweb-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	origin := utils.GetEnv("SERVER_ORIGIN", "http://localhost:"+port, log)
	dataDir := utils.GetEnv("DATA_DIR", "./data", log)

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	gdb := dbService.DB()
	dialect := search.DialectFor(dbService.DialectName(), log)

	// Storage
	store := storage.NewStore(dataDir, log)
	if err := store.EnsureRoot(); err != nil {
		log.Error("Storage init failed", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	studyRepo := repos.NewStudyRepo(gdb, log)
	seriesRepo := repos.NewSeriesRepo(gdb, log)
	instanceRepo := repos.NewInstanceRepo(gdb, log)

	// Services
	log.Info("Setting up Services from main...")
	storeService := services.NewStoreService(gdb, log, store, origin, studyRepo, seriesRepo, instanceRepo)
	searchService := services.NewSearchService(gdb, log, store, dialect, origin, studyRepo, seriesRepo, instanceRepo)
	retrieveService := services.NewRetrieveService(gdb, log, store, dialect, instanceRepo)
	renderedService := services.NewRenderedService(gdb, log, store, dialect, instanceRepo)

	// Handlers
	log.Info("Setting up Handlers from main...")
	searchHandler := handlers.NewSearchHandler(log, searchService)
	retrieveHandler := handlers.NewRetrieveHandler(log, retrieveService, renderedService)
	storeHandler := handlers.NewStoreHandler(log, storeService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		SearchHandler:   searchHandler,
		RetrieveHandler: retrieveHandler,
		StoreHandler:    storeHandler,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
