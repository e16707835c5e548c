package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chainflow-backend/docs"
	chainHandler "chainflow-backend/internal/api/chain"
	eventHandler "chainflow-backend/internal/api/event"
	workflowHandler "chainflow-backend/internal/api/workflow"
	"chainflow-backend/internal/config"
	"chainflow-backend/internal/queue"
	chainRepo "chainflow-backend/internal/repository/chain"
	eventRepo "chainflow-backend/internal/repository/event"
	"chainflow-backend/internal/repository/jobguard"
	scannerRepo "chainflow-backend/internal/repository/scanner"
	"chainflow-backend/internal/repository/tasklog"
	workflowRepo "chainflow-backend/internal/repository/workflow"
	chainService "chainflow-backend/internal/service/chain"
	"chainflow-backend/internal/service/chainrpc"
	eventService "chainflow-backend/internal/service/event"
	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/service/matcher"
	"chainflow-backend/internal/service/processor"
	"chainflow-backend/internal/service/registry"
	scannerService "chainflow-backend/internal/service/scanner"
	workflowService "chainflow-backend/internal/service/workflow"
	"chainflow-backend/internal/worker"
	"chainflow-backend/pkg/database"
	"chainflow-backend/pkg/database/migrations"
	"chainflow-backend/pkg/logger"
	"chainflow-backend/pkg/notification"
	"chainflow-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Chainflow Backend API
// @version 1.0
// @description Blockchain event driven workflow engine
// @host localhost:8080
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(logger.DefaultConfig())
	logger.Info("Starting Chainflow Backend v1.0.0")

	// 创建根context和WaitGroup用于协调关闭
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config: ", err)
		os.Exit(1)
	}
	logger.ReInit(&cfg.Log)

	// 2. 连接数据库并执行迁移
	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database: ", err)
		os.Exit(1)
	}
	logger.SetDB(db)

	if err := migrations.InitTables(db); err != nil {
		logger.Error("Failed to initialize tables: ", err)
		os.Exit(1)
	}
	if applied, err := migrations.GetMigrationStatus(db); err == nil {
		logger.Info("Database migrations applied", "count", len(applied))
	}

	// 3. 连接Redis
	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis: ", err)
		os.Exit(1)
	}

	// 4. 初始化仓库层
	chainRepository := chainRepo.NewRepository(db)
	eventRepository := eventRepo.NewCachedRepository(eventRepo.NewRepository(db), redisClient, cfg.Queue.EventCacheTTL)
	workflowRepository := workflowRepo.NewRepository(db)
	taskLogRepository := tasklog.NewRepository(db)
	progressRepository := scannerRepo.NewProgressRepository(db)
	guard := jobguard.NewRedisGuard(redisClient, cfg.Queue.JobLeaseTTL, cfg.Queue.JobGuardTTL)

	// 5. 初始化JWT管理器与密钥加密
	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessExpiry)
	secretCipher, err := utils.NewSecretCipher(cfg.Notification.SecretKey)
	if err != nil {
		logger.Error("Failed to initialize secret cipher: ", err)
		os.Exit(1)
	}
	if !secretCipher.Enabled() {
		logger.Warn("Notification secret key not configured, webhook secrets are stored in plain text")
	}

	// 6. 初始化任务处理器
	notifyCfg := cfg.Notification
	processors := processor.NewRegistry(
		processor.NewTriggerProcessor(),
		processor.NewFilterProcessor(),
		processor.NewWebhookProcessor(notification.NewWebhookSender(notifyCfg.HTTPTimeout), secretCipher),
		processor.NewEmailProcessor(notification.NewEmailSender(notification.SMTPSettings{
			Host:     notifyCfg.SMTP.Host,
			Port:     notifyCfg.SMTP.Port,
			Username: notifyCfg.SMTP.Username,
			Password: notifyCfg.SMTP.Password,
			From:     notifyCfg.SMTP.From,
		})),
		processor.NewTelegramProcessor(notification.NewTelegramSender(notifyCfg.TelegramAPIBase, notifyCfg.TelegramBotToken, notifyCfg.HTTPTimeout)),
		processor.NewDiscordProcessor(notification.NewDiscordSender(notifyCfg.HTTPTimeout)),
	)

	// 7. 两级队列：区块队列 -> 工作流队列
	blockProducer := queue.NewRedisProducer(redisClient, cfg.Queue.BlockStream, cfg.Queue.StreamMaxLength)
	workflowProducer := queue.NewRedisProducer(redisClient, cfg.Queue.WorkflowStream, cfg.Queue.StreamMaxLength)

	blockConsumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:         cfg.Queue.BlockStream,
		DLQStream:      cfg.Queue.BlockDLQStream,
		Group:          cfg.Queue.Group,
		Consumer:       cfg.Queue.Consumer,
		BatchSize:      cfg.Queue.BatchSize,
		Block:          cfg.Queue.Block,
		RequeueDelay:   cfg.Queue.RequeueDelay,
		ReclaimMinIdle: cfg.Queue.ReclaimMinIdle,
	})
	if err != nil {
		logger.Error("Failed to create block consumer: ", err)
		os.Exit(1)
	}
	workflowConsumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:         cfg.Queue.WorkflowStream,
		DLQStream:      cfg.Queue.WorkflowDLQ,
		Group:          cfg.Queue.Group,
		Consumer:       cfg.Queue.Consumer,
		BatchSize:      cfg.Queue.BatchSize,
		Block:          cfg.Queue.Block,
		RequeueDelay:   cfg.Queue.RequeueDelay,
		ReclaimMinIdle: cfg.Queue.ReclaimMinIdle,
	})
	if err != nil {
		logger.Error("Failed to create workflow consumer: ", err)
		os.Exit(1)
	}

	blockMatcher := matcher.NewBlockMatcher(eventRepository, workflowRepository, chainRepository)
	pipeline := executor.NewPipelineExecutor(workflowRepository, taskLogRepository, guard, processors, cfg.Worker.TaskTimeout)

	blockPool := worker.NewPool("block", blockConsumer, worker.NewBlockHandler(blockMatcher, workflowProducer), cfg.Worker.BlockConcurrency, cfg.Queue.MaxAttempts)
	workflowPool := worker.NewPool("workflow", workflowConsumer, worker.NewWorkflowHandler(pipeline), cfg.Worker.WorkflowConcurrency, cfg.Queue.MaxAttempts)
	blockPool.Start(ctx)
	workflowPool.Start(ctx)

	// 8. 链节点RPC、运行时版本登记与扫链
	rpcManager := chainrpc.NewRPCManager(&cfg.RPC, chainRepository)
	provider := chainrpc.NewProvider(rpcManager)
	registrySvc := registry.NewService(provider, chainRepository, eventRepository)
	scannerSvc := scannerService.NewService(&cfg.Scanner, chainRepository, provider, registrySvc, progressRepository, blockProducer)
	if cfg.Scanner.Enabled {
		if err := scannerSvc.Start(ctx); err != nil {
			logger.Error("Failed to start scanner service", err)
		} else {
			logger.Info("Scanner service started successfully")
		}
	} else {
		logger.Info("Scanner disabled, only consuming queued blocks")
	}

	// 9. 初始化服务层
	chainSvc := chainService.NewService(chainRepository)
	eventSvc := eventService.NewService(eventRepository)
	workflowSvc := workflowService.NewService(workflowRepository, taskLogRepository, chainRepository, eventRepository, processors, secretCipher)

	// 10. 设置Gin和路由
	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	v1 := router.Group("/api/v1")
	{
		chainHandler.NewHandler(chainSvc, scannerSvc).RegisterRoutes(v1)
		eventHandler.NewHandler(eventSvc).RegisterRoutes(v1)
		workflowHandler.NewHandler(workflowSvc, jwtManager).RegisterRoutes(v1)
	}

	// Swagger API文档端点
	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	// 健康检查端点
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rpc": rpcManager.GetStatus()})
	})

	// 11. 启动HTTP服务器
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting server on ", "address", addr)
		logger.Info("Swagger documentation available at: http://localhost:" + cfg.Server.Port + "/swagger/index.html")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: ", err)
			cancel()
		}
	}()

	// 12. 等待关闭信号
	select {
	case <-sigCh:
		logger.Info("Received shutdown signal, starting graceful shutdown...")
	case <-ctx.Done():
		logger.Info("Context cancelled, starting graceful shutdown...")
	}

	// 13. 逆序关闭
	logger.Info("Stopping HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error: ", err)
	} else {
		logger.Info("HTTP server stopped")
	}
	shutdownCancel()

	// 先停扫链，再停区块阶段，最后停工作流阶段，保证在途任务写完日志
	logger.Info("Stopping scanner service...")
	scannerSvc.Stop()

	logger.Info("Stopping worker pools...")
	blockPool.Stop()
	workflowPool.Stop()

	cancel()

	logger.Info("Stopping RPC manager...")
	rpcManager.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All services stopped gracefully")
	case <-time.After(15 * time.Second):
		logger.Error("Timeout waiting for services to stop, forcing exit", nil)
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis connection", err)
	}
	logger.Sync()
}
