package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"resume-matcher/internal/config"
	appLogger "resume-matcher/internal/logger"
	"resume-matcher/internal/parser"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/research"
	"resume-matcher/internal/scraper"
	"resume-matcher/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// 一次性修复卡住的作业：processing 超时的置为 failed，
// 长时间未被认领的 pending 作业重新派发（有 RabbitMQ 时）或在本进程内直接执行。
func main() {
	_ = godotenv.Load()

	var (
		configPath string
		staleAfter time.Duration
		dryRun     bool
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.DurationVar(&staleAfter, "stale-after", 0, "超过该时长视为卡住，默认使用配置中的 pipeline.stale_after")
	pflag.BoolVar(&dryRun, "dry-run", false, "只列出需要修复的作业")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if _, err := appLogger.Init(appLogger.Config(cfg.Logger)); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	log := appLogger.Component("data_repair")

	if staleAfter <= 0 {
		staleAfter = config.GetDuration(cfg.Pipeline.StaleAfter, 15*time.Minute)
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	jobStore := storage.NewJobStore(storageManager.DB.DB())
	cutoff := time.Now().Add(-staleAfter)

	if dryRun {
		stale, err := jobStore.ListStale(ctx, cutoff, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("查询超时作业失败")
		}
		pending, err := jobStore.ListPendingBefore(ctx, cutoff, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("查询待派发作业失败")
		}
		for _, job := range stale {
			fmt.Printf("stale   %s owner=%s updated_at=%s\n", job.JobID, job.OwnerID, job.UpdatedAt.Format(time.RFC3339))
		}
		for _, job := range pending {
			fmt.Printf("pending %s owner=%s updated_at=%s\n", job.JobID, job.OwnerID, job.UpdatedAt.Format(time.RFC3339))
		}
		return
	}

	extractor, err := parser.BuildPDFExtractor(ctx, cfg.Parser, log)
	if err != nil {
		log.Fatal().Err(err).Msg("创建PDF提取器失败")
	}
	source := scraper.NewGitHubPostingSource(cfg.Scraper.SourceURL,
		scraper.WithLimit(cfg.Scraper.Limit),
		scraper.WithUserAgent(cfg.Scraper.UserAgent),
		scraper.WithLogger(log))
	researcher := research.NewWebResearcher(cfg.Research.Endpoint, cfg.Research.APIKey, cfg.Research.MaxResults,
		time.Duration(cfg.Research.TimeoutSeconds)*time.Second, log)

	var orchestrator *processor.Orchestrator
	requeue := func(ctx context.Context, jobID, _ string) error {
		return orchestrator.Process(ctx, jobID)
	}
	if storageManager.RabbitMQ != nil {
		requeue = processor.NewRequeueFunc(storageManager.RabbitMQ, cfg.RabbitMQ.AnalysisExchange, cfg.RabbitMQ.AnalysisRoutingKey)
	}

	initialBackoff, maxBackoff := cfg.RetryBackoff()
	orchestrator = processor.NewOrchestrator(jobStore, storageManager.MinIO, parser.NewProfileAnalyzer(extractor, log), source,
		parser.NewKeywordMatchEvaluator(),
		processor.WithLogger(log),
		processor.WithRetryPolicy(processor.RetryPolicy{
			MaxAttempts:    cfg.Pipeline.Retry.MaxAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
		}),
		processor.WithResearcher(researcher),
		processor.WithResearchThreshold(cfg.Pipeline.ResearchThreshold),
		processor.WithStaleAfter(staleAfter),
		processor.WithRequeue(requeue),
	)

	reaped, err := orchestrator.ReapStale(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("reaped", reaped).Msg("修复作业失败")
	}
	log.Info().Int("reaped", reaped).Dur("stale_after", staleAfter).Msg("作业修复完成")
}
