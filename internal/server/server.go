package server

import (
	"backend-wanderqi/internal/auth"
	"backend-wanderqi/internal/character"
	"backend-wanderqi/internal/config"
	"backend-wanderqi/internal/presence"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Presence *presence.Directory
	Ticker   *presence.Ticker
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	characters := character.NewService(db)

	var cache presence.Cache
	if redisClient != nil {
		cache = presence.NewRedisCache(redisClient)
	}
	directory := presence.NewDirectory(characters, cache, presence.NewRouter())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Presence: directory,
		Ticker:   presence.NewTicker(directory, cfg.MeditationTick, cfg.MeditationQiGain),
	}

	registerRoutes(s, characters)
	return s
}

func registerRoutes(s *Server, characters *character.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	character.RegisterRoutes(s.App.Group("/players"), characters, jwtMiddleware)
	presence.RegisterRoutes(s.App.Group("/presence"), s.Presence)
}
