package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"lucky-rounds-backend/internal/config"
	"lucky-rounds-backend/internal/handlers"
	"lucky-rounds-backend/internal/ledger"
	"lucky-rounds-backend/internal/middleware"
	"lucky-rounds-backend/internal/models"
	"lucky-rounds-backend/internal/scheduler"
	"lucky-rounds-backend/internal/services"
	"lucky-rounds-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	jwtService := services.NewJWTService(cfg)
	settings := services.NewSettings(redisService, cfg)
	moneyLedger := ledger.New(redisService, db, settings)

	instant, err := services.NewInstantGames(redisService, moneyLedger, settings)
	if err != nil {
		log.Fatalf("Failed to initialize instant games: %v", err)
	}

	hub := handlers.NewWebSocketHub()

	crash, err := scheduler.New(models.GameTypeCrash, scheduler.Config{
		BettingWindow:  cfg.BettingWindow,
		FlightMin:      cfg.FlightMin,
		FlightMax:      cfg.FlightMax,
		RoundPause:     cfg.RoundPause,
		MultiplierRate: cfg.MultiplierRate,
	}, moneyLedger, db, settings, hub)
	if err != nil {
		log.Fatalf("Failed to initialize crash scheduler: %v", err)
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		crash.Run(ctx)
	}()

	wsHandler := handlers.NewWebSocketHandler(hub, redisService)
	userHandler := handlers.NewUserHandler(redisService)
	gameHandler := handlers.NewGameHandler(crash, instant, redisService, db, settings)
	adminHandler := handlers.NewAdminHandler(moneyLedger, redisService, instant)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/me/client-seed", userHandler.UpdateClientSeed)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.GET("/balance", gameHandler.GetBalance)
			games.GET("/transactions", gameHandler.GetTransactions)

			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/verify", gameHandler.VerifyGame)

			crashRoutes := games.Group("/crash")
			{
				crashRoutes.POST("/bet", gameHandler.PlaceBet)
				crashRoutes.POST("/cashout", gameHandler.Cashout)
				crashRoutes.GET("/round", gameHandler.GetCurrentRound)
				crashRoutes.GET("/rounds", gameHandler.GetRoundHistory)
				crashRoutes.GET("/rounds/:id", gameHandler.GetRound)
			}

			games.POST("/dice/play", gameHandler.PlayDice)
			games.POST("/coinflip/play", gameHandler.PlayCoinFlip)
			games.POST("/color/play", gameHandler.PlayColor)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.POST("/adjust", adminHandler.AdjustBalance)
			admin.POST("/rotate-seed", adminHandler.RotateSeed)
			admin.PUT("/settings/:name", adminHandler.SetSetting)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	<-schedulerDone
}
