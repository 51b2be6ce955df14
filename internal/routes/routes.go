package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Top-Pesinde/backend-sub000/internal/config"
	"github.com/Top-Pesinde/backend-sub000/internal/handlers"
	"github.com/Top-Pesinde/backend-sub000/internal/middleware"
	"github.com/Top-Pesinde/backend-sub000/internal/repository"
	"github.com/Top-Pesinde/backend-sub000/internal/services"
	chatws "github.com/Top-Pesinde/backend-sub000/internal/websocket"
)

// RegisterRoutes wires every component once at startup and hands the
// escalator back so main can cancel pending checks on shutdown. Nothing is
// reached through ambient globals.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) *services.NotificationEscalator {
	userRepo := repository.NewUserRepository(db)
	pushTokenRepo := repository.NewPushTokenRepository(db)
	chatStore := repository.NewChatStore(db)

	chatHub := chatws.NewHub()
	go chatHub.Run()

	var pushSender services.PushSender
	if cfg.PushEnabled {
		pushSender = services.NewExpoPushService(cfg.ExpoPushURL, pushTokenRepo)
	}
	escalator := services.NewNotificationEscalator(chatStore, pushSender, cfg.EscalationDelay)

	chatService := services.NewChatService(chatStore, userRepo, chatHub, escalator)
	blockService := services.NewBlockService(chatStore, userRepo)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret, cfg.AutoReadOnJoin)
	blockHandler := handlers.NewBlockHandler(blockService)
	deviceHandler := handlers.NewDeviceHandler(pushTokenRepo)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.StartConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/read", chatHandler.MarkConversationRead)

	messages := authProtected.Group("/messages")
	messages.Post("", chatHandler.SendMessage)
	messages.Put("/:id", chatHandler.EditMessage)
	messages.Delete("/:id", chatHandler.DeleteMessage)

	blocks := authProtected.Group("/blocks")
	blocks.Get("", blockHandler.ListBlocked)
	blocks.Post("", blockHandler.BlockUser)
	blocks.Delete("/:userId", blockHandler.UnblockUser)
	blocks.Get("/:userId/status", blockHandler.BlockStatus)

	authProtected.Post("/devices", deviceHandler.RegisterDevice)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	return escalator
}
