package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lk2023060901/docsense-backend/internal/conf"
	"github.com/lk2023060901/docsense-backend/internal/data"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/migration"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
	legacyRoot = flag.String("legacy-root", "", "legacy store root (default: storage.legacy_root)")
	backupDir  = flag.String("backup-dir", "", "backup directory (default: storage.backup_dir)")
	dryRun     = flag.Bool("dry-run", false, "resolve legacy records without writing anything")
)

func main() {
	flag.Parse()

	fmt.Println("🚀 旧版文件存储迁移工具启动...")
	fmt.Println()

	// Load config
	cfg, err := conf.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	if *legacyRoot != "" {
		cfg.Storage.LegacyRoot = *legacyRoot
	}
	if *backupDir != "" {
		cfg.Storage.BackupDir = *backupDir
	}

	// Initialize logger
	zapLogger, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: "console",
		Output: "console",
	})
	if err != nil {
		log.Fatalf("❌ 初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize data layer
	d, cleanup, err := data.NewData(cfg, zapLogger)
	if err != nil {
		log.Fatalf("❌ 初始化数据层失败: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := d.NewManager(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ 打开文件管理器失败: %v", err)
	}

	var opts []migration.Option
	if d.MinIOClient != nil {
		opts = append(opts, migration.WithBackupSink(
			migration.NewObjectSink(d.MinIOClient, d.FS, cfg.MinIO.Bucket, zapLogger)))
	}
	migrator := migration.New(mgr, d.FS, migration.Config{
		LegacyRoot: cfg.Storage.LegacyRoot,
		BackupDir:  cfg.Storage.BackupDir,
	}, zapLogger, opts...)

	fmt.Printf("📂 旧版存储: %s\n", cfg.Storage.LegacyRoot)
	fmt.Printf("📦 管理目录: %s\n\n", mgr.ManagedDir())

	if *dryRun {
		items, err := migrator.Plan(ctx)
		if err != nil {
			log.Fatalf("❌ 读取旧版注册表失败: %v", err)
		}
		missing := 0
		for _, it := range items {
			if !it.Exists {
				missing++
				fmt.Printf("⚠️  缺少源文件: %s (%s)\n", it.Source, it.LegacyID)
			}
		}
		printJSON(map[string]any{
			"dry_run": true,
			"records": len(items),
			"missing": missing,
			"items":   items,
		})
		if missing > 0 {
			os.Exit(1)
		}
		return
	}

	result, err := migrator.Migrate(ctx)
	if err != nil {
		cleanup()
		log.Fatalf("❌ 迁移失败，已回滚: %v", err)
	}

	fmt.Printf("✅ 迁移完成: %d 条记录，%d 条重复内容\n", result.Migrated, result.Duplicates)
	printJSON(result)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("❌ 输出结果失败: %v", err)
	}
}
