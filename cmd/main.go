package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"resume-matcher/internal/api/handler"
	"resume-matcher/internal/api/router"
	"resume-matcher/internal/auth"
	"resume-matcher/internal/config"
	appLogger "resume-matcher/internal/logger"
	"resume-matcher/internal/outbox"
	"resume-matcher/internal/parser"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/research"
	"resume-matcher/internal/scraper"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/pkg/ratelimit"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	logCloser, err := appLogger.Init(appLogger.Config(cfg.Logger))
	if err != nil {
		stdlog.Fatalf("初始化日志失败: %v", err)
	}
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	glog.SetLevel(hertzLevel(cfg.Logger.Level))
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	glog.Info("存储服务初始化成功")

	jobStore := storage.NewJobStore(storageManager.DB.DB())
	userStore := storage.NewUserStore(storageManager.DB.DB())

	pdfExtractor, err := parser.BuildPDFExtractor(ctx, cfg.Parser, appLogger.Component("parser"))
	if err != nil {
		glog.Fatalf("初始化PDF解析器失败: %v", err)
	}
	analyzer := parser.NewProfileAnalyzer(pdfExtractor, appLogger.Component("parser"))

	catalog, postingSource := buildPostingSource(cfg, storageManager)
	researcher := research.NewWebResearcher(cfg.Research.Endpoint, cfg.Research.APIKey, cfg.Research.MaxResults,
		time.Duration(cfg.Research.TimeoutSeconds)*time.Second, appLogger.Component("research")).
		WithRateLimit(ratelimit.NewTokenBucket(cfg.Research.QPM, 0))
	if !researcher.Enabled() {
		glog.Info("未配置调研 API key，跳过公司调研")
	}

	// 有 RabbitMQ 时经由 broker 派发，否则使用进程内工作池
	var (
		publisher outbox.Publisher
		pool      *processor.WorkerPool
	)
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	} else {
		pool = processor.NewWorkerPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, appLogger.Component("worker_pool"))
		publisher = pool
	}

	initialBackoff, maxBackoff := cfg.RetryBackoff()
	orchestrator := processor.NewOrchestrator(jobStore, storageManager.MinIO, analyzer, postingSource, parser.NewKeywordMatchEvaluator(),
		processor.WithLogger(appLogger.Component("orchestrator")),
		processor.WithRetryPolicy(processor.RetryPolicy{
			MaxAttempts:    cfg.Pipeline.Retry.MaxAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
		}),
		processor.WithResearcher(researcher),
		processor.WithResearchThreshold(cfg.Pipeline.ResearchThreshold),
		processor.WithStaleAfter(config.GetDuration(cfg.Pipeline.StaleAfter, 15*time.Minute)),
		processor.WithJobTimeout(config.GetDuration(cfg.Pipeline.JobTimeout, 10*time.Minute)),
		processor.WithRequeue(processor.NewRequeueFunc(publisher, cfg.RabbitMQ.AnalysisExchange, cfg.RabbitMQ.AnalysisRoutingKey)),
	)
	dispatcher := processor.NewDispatcher(orchestrator, appLogger.Component("dispatcher"))

	messageRelay := outbox.NewMessageRelay(storageManager.DB.DB(), publisher, appLogger.Component("outbox"),
		outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayPollingInterval, time.Second)),
		outbox.WithBatchSize(cfg.RabbitMQ.RelayBatchSize),
	)
	messageRelay.Start()
	glog.Info("消息中继服务已启动")

	var consumer *storage.Consumer
	if storageManager.RabbitMQ != nil {
		consumer, err = storageManager.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.AnalysisQueue,
			cfg.RabbitMQ.PrefetchCount, cfg.Pipeline.Workers, dispatcher.Handle)
		if err != nil {
			glog.Fatalf("启动分析作业消费者失败: %v", err)
		}
		glog.Infof("分析作业消费者已启动，队列: %s, 工作线程数: %d", cfg.RabbitMQ.AnalysisQueue, cfg.Pipeline.Workers)
	} else {
		pool.Start(ctx, dispatcher.Handle)
	}

	reaperDone := orchestrator.StartReaper(ctx, config.GetDuration(cfg.Pipeline.ReapInterval, time.Minute))

	intakeOpts := []processor.IntakeOption{
		processor.WithMaxSize(cfg.Upload.MaxSizeBytes),
		processor.WithAllowedContentTypes(cfg.Upload.AllowedContentTypes),
		processor.WithEventRoute(cfg.RabbitMQ.AnalysisExchange, cfg.RabbitMQ.AnalysisRoutingKey),
		processor.WithIntakeLogger(appLogger.Component("intake")),
	}
	if storageManager.Redis != nil {
		intakeOpts = append(intakeOpts, processor.WithUploadLocker(storageManager.Redis, config.GetDuration(cfg.Upload.LockTTL, 30*time.Second)))
	}
	intake := processor.NewIntake(jobStore, storageManager.MinIO, intakeOpts...)

	verifier, err := buildVerifier(cfg)
	if err != nil {
		glog.Fatalf("初始化身份校验失败: %v", err)
	}

	h := router.NewServer(cfg.Server.Address, cfg.Server.MaxRequestBodyBytes)
	router.RegisterRoutes(h, router.Handlers{
		Resume: handler.NewResumeHandler(intake, jobStore, cfg.Upload.MaxSizeBytes, appLogger.Component("resume_handler")),
		Jobs:   handler.NewJobHandler(catalog, cfg.Scraper.Limit, appLogger.Component("job_handler")),
		Users:  handler.NewUserHandler(userStore, appLogger.Component("user_handler")),
		Auth:   auth.Middleware(verifier, appLogger.Component("auth")),
		Checks: map[string]router.HealthCheck{"database": storageManager.DB.Ping},
	})
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}

	messageRelay.Stop()
	if consumer != nil {
		consumer.Stop()
	}
	if pool != nil {
		pool.Stop()
	}
	cancel()
	<-reaperDone

	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("关闭链路追踪失败: %v", err)
	}
	storageManager.Close()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	glog.Info("优雅退出完成")
}

// buildPostingSource 返回供 get_jobs 使用的原始来源，以及流水线使用的（可能带缓存的）来源
func buildPostingSource(cfg *config.Config, storageManager *storage.Storage) (*scraper.GitHubPostingSource, processor.PostingSource) {
	log := appLogger.Component("scraper")
	timeout := time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second

	opts := []scraper.Option{
		scraper.WithLimit(cfg.Scraper.Limit),
		scraper.WithTimeout(timeout),
		scraper.WithUserAgent(cfg.Scraper.UserAgent),
		scraper.WithLogger(log),
	}
	if cfg.Scraper.FetchDetails {
		opts = append(opts, scraper.WithDetailFetcher(
			scraper.NewPostingDetailFetcher(timeout, cfg.Scraper.UserAgent, cfg.Scraper.DetailMaxChars, log).
				WithRateLimit(ratelimit.NewTokenBucket(cfg.Scraper.DetailQPM, 0))))
	}
	source := scraper.NewGitHubPostingSource(cfg.Scraper.SourceURL, opts...)

	if storageManager.Redis == nil {
		return source, source
	}
	ttl := config.GetDuration(cfg.Scraper.CacheTTL, 10*time.Minute)
	key := scraper.CatalogCacheKey(source.URL(), cfg.Scraper.Limit)
	return source, scraper.NewCachedPostingSource(source, storageManager.Redis, key, ttl, log)
}

// buildVerifier JWT 公钥和静态 token 可以同时配置
func buildVerifier(cfg *config.Config) (auth.Verifier, error) {
	var chain auth.ChainVerifier
	if cfg.Auth.JWTPublicKeyFile != "" {
		v, err := auth.NewJWTVerifierFromFile(cfg.Auth.JWTPublicKeyFile, cfg.Auth.JWTIssuer)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if len(cfg.Auth.StaticTokens) > 0 {
		glog.Warn("启用了静态 token 校验，仅应在开发环境使用")
		chain = append(chain, auth.NewStaticVerifier(cfg.Auth.StaticTokens))
	}
	if len(chain) == 0 {
		glog.Warn("未配置任何身份校验方式，所有需要登录的请求都会被拒绝")
	}
	return chain, nil
}

func hertzLevel(level string) glog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return glog.LevelTrace
	case "debug":
		return glog.LevelDebug
	case "warn":
		return glog.LevelWarn
	case "error":
		return glog.LevelError
	case "fatal":
		return glog.LevelFatal
	default:
		return glog.LevelInfo
	}
}
