package bootstrap

import (
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/config"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/controller"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/memory"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/unitofwork"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/service"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/llm/factory"
	pktNats "github.com/huppermotors-crypto/parts-inventory-sub001/pkg/nats"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/operator"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/ratelimit"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	WebhookController controller.IWebhookController

	// Background services (exposed for main.go to run)
	NotifierService service.INotifierService
	RateLimiter     *ratelimit.Service

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI backend
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	if llmProvider == nil {
		log.Printf("[WARN] AI backend not configured, assistant degrades to a fixed reply")
	} else {
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)
	}

	// 4. Rate limiting (optional Redis rejection mirror)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		if opts, err := redis.ParseURL(cfg.App.RedisURL); err == nil {
			rdb = redis.NewClient(opts)
		} else {
			log.Printf("[WARN] Invalid REDIS_URL, rejection mirror disabled: %v", err)
		}
	}
	rateLimiter := ratelimit.NewService(ratelimit.Options{
		Window:       cfg.RateLimit.Window,
		VisitorCap:   cfg.RateLimit.VisitorCap,
		IPCap:        cfg.RateLimit.IPCap,
		GlobalCap:    cfg.RateLimit.GlobalCap,
		BanThreshold: cfg.RateLimit.BanThreshold,
		BanDuration:  cfg.RateLimit.BanDuration,
		SweepEvery:   cfg.RateLimit.SweepEvery,
	}, sysLogger, rdb)

	// 5. Operator channel: Telegram, mail fallback, or logged no-op
	var notifier operator.Notifier
	switch {
	case cfg.Operator.BotToken != "" && cfg.Operator.ChatId != "":
		notifier = operator.NewTelegramNotifier(cfg.Operator.BotToken, cfg.Operator.ChatId, cfg.Operator.Timeout)
		log.Printf("[INFO] Operator channel: telegram")
	case cfg.SMTP.Host != "" && cfg.Operator.NotifyEmail != "":
		notifier = operator.NewMailNotifier(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password,
			cfg.SMTP.Email, cfg.SMTP.SenderName, cfg.Operator.NotifyEmail,
		)
		log.Printf("[INFO] Operator channel: mail fallback")
	default:
		notifier = operator.NewNoopNotifier(sysLogger)
		log.Printf("[WARN] Operator channel not configured, notifications are logged only")
	}

	// 6. Analytics (optional)
	var analytics *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		analytics, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS, analytics disabled: %v", err)
		}
	}

	// 7. Services
	failures := memory.NewFailureRepository()
	chatService := service.NewChatService(
		uowFactory,
		llmProvider,
		rateLimiter,
		failures,
		pubSub,
		sysLogger,
		cfg.Ai.Timeout,
	)
	notifierService := service.NewNotifierService(pubSub, notifier, analytics, sysLogger, cfg.Operator.Timeout)

	// 8. Controllers
	return &Container{
		ChatController:    controller.NewChatController(chatService),
		WebhookController: controller.NewWebhookController(chatService, cfg.Operator.WebhookSecret, sysLogger),
		NotifierService:   notifierService,
		RateLimiter:       rateLimiter,
		Logger:            sysLogger,
	}
}
