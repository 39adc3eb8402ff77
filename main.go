package main

import (
	"api/auth"
	"api/config"
	"api/crypto"
	"api/game"
	"api/migrations"
	"api/storage"
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		// non-browser clients send no Origin header
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
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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

	return r
}

func main() {

	// logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	if config.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// ENVs
	godotenv.Load()

	ALLOWED_ORIGINS, exists := os.LookupEnv("ALLOWED_ORIGINS")
	if !exists {
		log.Fatal("Missing allowed origins")
	}
	allowedOrigins := strings.Split(ALLOWED_ORIGINS, ",")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	POSTGRES_URL, exists := os.LookupEnv("POSTGRES_URL")
	if !exists {
		log.Fatal("Missing postgres url")
	}

	JWT_KEY, exists := os.LookupEnv("JWT_KEY")
	if !exists {
		log.Fatal("Missing jwt signing key")
	}

	if err := migrations.Migrate(POSTGRES_URL); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), POSTGRES_URL)
	if err != nil {
		log.Fatal(err)
	}
	tokenAge := time.Hour * 24 * 7 // 7 days
	passwordHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(JWT_KEY, tokenAge)

	authService := auth.NewService(pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewAuthHandler(authService, tokenAge)

	r := CreateServer(allowedOrigins)

	{
		auth := r.Group("/auth")
		auth.POST("/signup", authHandler.SignupHandler)
		auth.POST("/login", authHandler.LoginHandler)
		auth.POST("/logout", authHandler.LogoutHandler)
		auth.GET("/refresh", authHandler.RefreshSessionHandler)
	}

	wg := sync.WaitGroup{}
	arena := game.NewArena(game.StdTickerCreator{}, &wg)

	arenaStarted := make(chan struct{})
	go arena.ArenaActor(arenaStarted)
	<-arenaStarted

	gameService := game.NewService(arena, pgRepo, pgRepo, pgRepo, pgRepo, pgRepo, logger)
	gameHandler := game.NewGameHandler(gameService, originSet)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(authHandler.RequireAuthMiddleware(time.Second * 2))

		gameGroup.GET("/rooms", gameHandler.ListRoomsHandler)
		gameGroup.GET("/rooms/:roomid", gameHandler.RoomDetailHandler)
		gameGroup.GET("/rooms/:roomid/scores", gameHandler.RoomScoresHandler)
		gameGroup.POST("/create", gameHandler.CreateRoomHandler)
		gameGroup.POST("/join", gameHandler.JoinRoomHandler)
		gameGroup.POST("/leave", gameHandler.LeaveRoomHandler)
		gameGroup.POST("/start", gameHandler.StartRoundHandler)
		gameGroup.GET("/round/:roomid", gameHandler.RevealWordHandler)
		gameGroup.POST("/vote", gameHandler.CastVoteHandler)
		gameGroup.POST("/vote/result", gameHandler.VoteResultHandler)
		gameGroup.POST("/final-vote", gameHandler.CastFinalVoteHandler)
		gameGroup.POST("/final-vote/result", gameHandler.FinalVoteResultHandler)
		gameGroup.GET("/ranking", gameHandler.RankingHandler)
		gameGroup.GET("/ws/:roomid", gameHandler.WSHandler)
	}

	go r.Run(":5000")
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	slog.Info("server started")
	<-sigCh
	slog.Info("SIGTERM or SIGINT received, waiting for rooms to finish before shutting down")

	wg.Wait()
	pgRepo.Close()
	slog.Info("shutting down now")
}
