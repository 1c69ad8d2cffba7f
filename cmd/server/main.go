package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/conf"
	"github.com/lk2023060901/docsense-backend/internal/data"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/analyzer"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/biz"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/loader"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/service"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/watcher"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/docsense-backend/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	if config.Extract.OfficeLicenseKey != "" {
		if err := loader.SetOfficeLicense(config.Extract.OfficeLicenseKey); err != nil {
			log.Fatal("failed to set office license", zap.Error(err))
		}
	}

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := d.NewManager(ctx, config)
	if err != nil {
		log.Fatal("failed to open file lifecycle manager", zap.Error(err))
	}
	if config.Storage.ReconcileOnStart {
		report, err := mgr.Reconcile(ctx)
		if err != nil {
			log.Fatal("startup reconcile failed", zap.Error(err))
		}
		log.Info("startup reconcile finished",
			zap.Int("issues", len(report.Issues)),
			zap.Int("repaired", report.Repaired))
	}

	// Initialize analyzer
	catalog, err := analyzer.LoadCatalog(d.FS, config.Analysis.PromptsFile)
	if err != nil {
		log.Fatal("failed to load prompt catalog", zap.Error(err))
	}
	analysisConfig := analyzer.Config{
		Provider:    config.Analysis.Provider,
		APIKey:      config.Analysis.APIKey,
		BaseURL:     config.Analysis.BaseURL,
		Model:       config.Analysis.Model,
		Temperature: config.Analysis.Temperature,
		Timeout:     config.Analysis.Timeout,
	}
	completer, err := analyzer.NewCompleter(&analysisConfig)
	if err != nil {
		log.Fatal("failed to create completion client", zap.Error(err))
	}
	var tokenizer analyzer.Tokenizer
	if tk, err := analyzer.NewTiktokenTokenizer(""); err != nil {
		log.Warn("tokenizer unavailable, max_tokens limits are ignored", zap.Error(err))
	} else {
		tokenizer = tk
	}
	llm := analyzer.NewLLMAnalyzer(completer, catalog, tokenizer, analysisConfig, log)

	// Initialize worker pool
	pool, err := workerpool.New(&workerpool.Config{Workers: config.Worker.Size}, log)
	if err != nil {
		log.Fatal("failed to create worker pool", zap.Error(err))
	}
	defer pool.Shutdown()

	// Initialize use case and service
	analysisUseCase := biz.NewAnalysisUseCase(mgr, d.FS, loader.NewFactory(), llm, pool, config.Analysis.DefaultPrompt, log)
	fileService := service.NewFileService(analysisUseCase, catalog, service.Config{
		UploadTempDir: config.Server.UploadTempDir,
		MaxUploadMB:   config.Server.MaxUploadMB,
		RetentionDays: config.Storage.RetentionDays,
	}, log)

	// Inbox watcher
	if config.Watcher.Enabled {
		w := watcher.New(config.Watcher.InboxDir, config.Watcher.Settle, func(ctx context.Context, path string) error {
			return pool.Submit(func() {
				var err error
				if config.Watcher.PromptID == "" {
					_, _, err = mgr.Register(ctx, path, "")
				} else {
					_, err = analysisUseCase.Process(ctx, biz.AnalyzeRequest{Path: path, PromptID: config.Watcher.PromptID})
				}
				if err != nil {
					log.Warn("inbox file not processed", zap.String("path", path), zap.Error(err))
				}
			})
		}, log)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("inbox watcher stopped", zap.Error(err))
			}
		}()
	}

	// Initialize server
	httpServer := server.NewHTTPServer(config, log, fileService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	pool.Wait()
	if err := mgr.Close(shutdownCtx); err != nil {
		log.Error("failed to flush registry", zap.Error(err))
	}

	log.Info("server exited")
}
