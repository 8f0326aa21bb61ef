package main

import (
	"context"
	"landedcost/internal/database"
	"landedcost/internal/handler"
	"landedcost/internal/repository"
	"landedcost/internal/service"
	"landedcost/internal/source"
	"landedcost/internal/websocket"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	batchSize := envIntOr("IMPORT_BATCH_SIZE", service.DefaultBatchSize)
	staleMinutes := envIntOr("IMPORT_STALE_MINUTES", 30)
	pruneDays := envIntOr("IMPORT_PRUNE_DAYS", 90)
	fxPivot := envOr("FX_PIVOT_CURRENCY", "USD")

	var excludedDestinations []string
	if raw := os.Getenv("SCOPE_EXCLUDED_DESTINATIONS"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				excludedDestinations = append(excludedDestinations, strings.ToUpper(d))
			}
		}
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	dutyRepo := repository.NewDutyRateRepository(db)
	vatRepo := repository.NewVatRuleRepository(db)
	deMinimisRepo := repository.NewDeMinimisRepository(db)
	surchargeRepo := repository.NewSurchargeRepository(db)
	fxRepo := repository.NewFxRateRepository(db)
	freightRepo := repository.NewFreightRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	importRepo := repository.NewImportRepository(db)
	lockRepo := repository.NewLockRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	importService := service.NewImportService(
		dutyRepo, vatRepo, deMinimisRepo, surchargeRepo, fxRepo, freightRepo,
		importRepo, lockRepo, auditRepo, txManager, wsHub, batchSize,
	)
	maintenanceService := service.NewMaintenanceService(importRepo, lockRepo, auditRepo)
	resolverService := service.NewResolverService(dutyRepo, vatRepo, deMinimisRepo, surchargeRepo, excludedDestinations)

	primaryFeed := source.NewFxFeed("fx-daily", envOr("FX_PRIMARY_URL", "http://localhost:9000/fx/daily"))
	secondaryFeed := source.NewFxFeed("fx-cross", envOr("FX_SECONDARY_URL", "http://localhost:9000/fx/cross"))
	fxService := service.NewFxService(fxRepo, importRepo, importService, primaryFeed, secondaryFeed, fxPivot)

	freightService := service.NewFreightService(freightRepo)
	quoteService := service.NewQuoteService(resolverService, fxService, freightService, categoryRepo)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	quoteHandler := handler.NewQuoteHandler(quoteService)
	importHandler := handler.NewImportHandler(importService, maintenanceService)
	rateHandler := handler.NewRateHandler(dutyRepo, vatRepo, deMinimisRepo, surchargeRepo, freightRepo, categoryRepo)
	fxHandler := handler.NewFxHandler(fxService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Background sweeper: recovers runs stuck in "running" after a crash.
	sweepInterval := time.Duration(envIntOr("IMPORT_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			res, err := maintenanceService.SweepStaleImports(context.Background(), service.SweepRequest{
				ThresholdMinutes: staleMinutes,
			})
			if err != nil {
				log.Printf("Stale-import sweep failed: %v", err)
				continue
			}
			if res.Swept > 0 {
				log.Printf("Stale-import sweep marked %d run(s) failed", res.Swept)
			}
		}
	}()
	// Daily retention prune for finished runs and provenance rows.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			res, err := maintenanceService.PruneImports(context.Background(), service.PruneRequest{Days: pruneDays})
			if err != nil {
				log.Printf("Import prune failed: %v", err)
				continue
			}
			log.Printf("Import prune removed %d run(s), %d provenance row(s) before %s",
				res.ImportsDeleted, res.ProvenanceDeleted, res.Cutoff.Format("2006-01-02"))
		}
	}()

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for import-run lifecycle events
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c)
	})

	// API Routing
	quoteHandler.RegisterRoutes(router.Group(""))
	importHandler.RegisterRoutes(router.Group(""))
	rateHandler.RegisterRoutes(router.Group(""))
	fxHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
