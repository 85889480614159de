package main

import (
	"context"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rankit/config"
	"rankit/crypto"
	"rankit/game"
	"rankit/shared/logger"
	"rankit/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	if len(allowedOrigins) > 0 {
		r.Use(func(ctx *gin.Context) {
			origin := ctx.Request.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, origin) {
				ctx.Next()
				return
			}
			ctx.String(http.StatusForbidden, "forbidden origin")
			ctx.Abort()
		})

		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Content-Type",
				"Authorization",
				"Upgrade",
				"Connection",
				"Sec-WebSocket-Key",
				"Sec-WebSocket-Version",
				"Sec-WebSocket-Extensions",
				"Sec-WebSocket-Protocol",
			},
		}))
	}

	return r
}

func main() {
	cfg := config.MustLoad()
	if cfg.Debug {
		logger.EnableDebug()
	}

	store, err := storage.NewRoomStore(cfg.Redis.URL)
	if err != nil {
		logger.Fatalf("Connecting to redis: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		logger.Fatalf("Pinging redis: %v", err)
	}

	var archive game.GameArchive
	if cfg.Postgres.URL != "" {
		pgArchive, err := storage.NewPostgresArchive(context.Background(), cfg.Postgres.URL)
		if err != nil {
			logger.Fatalf("Connecting to postgres: %v", err)
		}
		defer pgArchive.Close()
		archive = pgArchive
	} else {
		logger.Warning("POSTGRES_URL not set, finished games will not be archived")
	}

	tokenManager := crypto.NewJWTManager(cfg.Auth.JWTKey, time.Hour*24)

	idGen := game.NewIdGen()
	tickerGen := game.NewTickerGen()
	lobby := game.NewLobby(&idGen, &tickerGen, store, archive)

	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	r := CreateServer(cfg.HTTP.AllowedOrigins)

	gameHandler := game.NewGameHandler(lobby, tokenManager, cfg.HTTP.PublicURL)
	{
		gameGroup := r.Group("/game")
		gameGroup.GET("/create", gameHandler.CreateGameHandler)
		gameGroup.GET("/join/:roomid", gameHandler.JoinGameHandler)
		gameGroup.GET("/games", gameHandler.GetPublicGamesHandler)
		gameGroup.GET("/qr/:roomid", gameHandler.QRCodeHandler)
	}

	srv := &http.Server{Addr: cfg.HTTP.Address, Handler: r}
	go func() {
		logger.Infof("Listening on %s", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("Shutdown: %v", err)
	}
}
