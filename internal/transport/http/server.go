package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"ragchat/internal/ai"
	appsvc "ragchat/internal/app"
	"ragchat/internal/bootstrap"
	"ragchat/internal/repository"
	"ragchat/internal/transport/http/handler"
	"ragchat/internal/transport/http/middleware"
	"ragchat/internal/vectorindex"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	kbRepo := repository.NewKnowledgeBaseRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	llmClient := ai.NewOpenAICompatibleClient(time.Duration(app.Config.LLM.TimeoutSeconds) * time.Second)
	generator := ai.NewRouter(
		llmClient,
		ai.ChatConfig{BaseURL: app.Config.LLM.OpenAIBaseURL, APIKey: app.Config.LLM.OpenAIAPIKey},
		ai.ChatConfig{BaseURL: app.Config.LLM.OllamaBaseURL},
	)
	indexClient := vectorindex.NewClient(
		vectorindex.Config{BaseURL: app.Config.VectorIndex.BaseURL, APIKey: app.Config.VectorIndex.APIKey},
		time.Duration(app.Config.VectorIndex.TimeoutSeconds)*time.Second,
	)

	registryService := appsvc.NewRegistryService(
		kbRepo,
		indexClient,
		app.Config.Upload.DefaultChunkSize,
		app.Config.Upload.DefaultChunkOverlap,
	)
	directService := appsvc.NewDirectService(app.Conversations, messageRepo, generator, app.Config.LLM.MaxContext)
	ragService := appsvc.NewRAGService(app.Conversations, registryService, indexClient, generator)

	authHandler := handler.NewAuthHandler(authService)
	conversationHandler := handler.NewConversationHandler(app.Conversations)
	kbHandler := handler.NewKnowledgeBaseHandler(registryService, app.Config.Upload.MaxFileBytes)
	queryHandler := handler.NewQueryHandler(directService, ragService)
	stateHandler := handler.NewStateHandler(app.Controller, app.Conversations, registryService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	authed.POST("/conversations", conversationHandler.Create)
	authed.GET("/conversations", conversationHandler.List)
	authed.GET("/conversations/:id", conversationHandler.Get)
	authed.GET("/conversations/:id/messages", conversationHandler.Messages)
	authed.PUT("/conversations/:id/title", conversationHandler.RefreshTitle)
	authed.DELETE("/conversations/:id", conversationHandler.Delete)

	authed.GET("/knowledge-bases", kbHandler.List)
	authed.GET("/knowledge-bases/compatible", kbHandler.ListCompatible)
	authed.POST("/knowledge-bases", kbHandler.Register)
	authed.GET("/knowledge-bases/:name", kbHandler.Get)
	authed.GET("/knowledge-bases/:name/documents", kbHandler.Documents)
	authed.POST("/documents", kbHandler.Upload)
	authed.GET("/models", kbHandler.Models)

	authed.POST("/query/direct", queryHandler.Direct)
	authed.POST("/query/rag", queryHandler.RAG)

	authed.GET("/chat/state", stateHandler.Get)
	authed.POST("/chat/mode/switch", stateHandler.SwitchMode)
	authed.POST("/chat/select", stateHandler.Select)

	return router
}
