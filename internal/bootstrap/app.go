package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "ragchat/internal/app"
	"ragchat/internal/cache"
	"ragchat/internal/config"
	"ragchat/internal/model"
	mysqlClient "ragchat/internal/platform/mysql"
	rabbitmqClient "ragchat/internal/platform/rabbitmq"
	redisClient "ragchat/internal/platform/redis"
	"ragchat/internal/repository"
	"ragchat/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	TitleWorker *worker.TitleRefreshWorker

	Conversations *appsvc.ConversationService
	Controller    *appsvc.ModeController

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Source{},
		&model.KnowledgeBase{},
		&model.Document{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	messageCache := cache.NewMessageCache(
		redisCli,
		time.Duration(cfg.Redis.MessagesTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.MessagesDirtyTTLSeconds)*time.Second,
	)
	titlePublisher := rabbitmqClient.NewTitlePublisher(mqConn, cfg.RabbitMQ.TitleRefreshQueue)
	controller := appsvc.NewModeController()

	conversations := appsvc.NewConversationService(
		repository.NewConversationRepository(mysqlDB),
		repository.NewMessageRepository(mysqlDB),
		messageCache,
		titlePublisher,
		controller,
	)

	titleWorker := worker.NewTitleRefreshWorker(mqConn, conversations, cfg.RabbitMQ.TitleRefreshQueue)
	if err := titleWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start title worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		TitleWorker:   titleWorker,
		Conversations: conversations,
		Controller:    controller,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.TitleWorker != nil {
		a.TitleWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
