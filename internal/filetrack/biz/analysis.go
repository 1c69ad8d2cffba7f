package biz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// TextExtractor 文本提取接口
type TextExtractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// Analyzer LLM 分析接口
type Analyzer interface {
	Analyze(ctx context.Context, text, promptID string) (string, error)
}

// AnalyzeRequest 分析请求
type AnalyzeRequest struct {
	// Path 读取并复制到托管目录
	Path string
	// OriginalPath 记录来源路径，缺省为 Path
	OriginalPath string
	PromptID     string
	Force        bool
}

// AnalyzeResult 分析结果
type AnalyzeResult struct {
	lifecycle.StatusView
	// Created 本次调用新登记了该内容
	Created bool `json:"created"`
	// Cached 直接返回已保存的分析，未调用模型
	Cached bool `json:"cached"`
}

// AnalysisUseCase 分析用例：登记、提取文本、调用模型并推进状态
type AnalysisUseCase struct {
	mgr           *lifecycle.Manager
	fs            storage.FS
	extractor     TextExtractor
	analyzer      Analyzer
	pool          *workerpool.Pool
	defaultPrompt string
	logger        *logger.Logger
}

// NewAnalysisUseCase 创建分析用例
func NewAnalysisUseCase(
	mgr *lifecycle.Manager,
	fsys storage.FS,
	extractor TextExtractor,
	analyzer Analyzer,
	pool *workerpool.Pool,
	defaultPrompt string,
	log *logger.Logger,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		mgr:           mgr,
		fs:            fsys,
		extractor:     extractor,
		analyzer:      analyzer,
		pool:          pool,
		defaultPrompt: defaultPrompt,
		logger:        logger.OrGlobal(log).Named("analysis"),
	}
}

// Manager 生命周期管理器
func (uc *AnalysisUseCase) Manager() *lifecycle.Manager {
	return uc.mgr
}

// Process 登记 req.Path 并分析。已完成的内容直接返回已保存的分析，除非设置
// Force。提取或模型失败时记录标记为 failed，错误与失败视图一并返回
func (uc *AnalysisUseCase) Process(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	promptID := req.PromptID
	if promptID == "" {
		promptID = uc.defaultPrompt
	}
	if promptID == "" {
		return nil, apperrors.NewBadRequestError("prompt_id is required")
	}

	rec, created, err := uc.mgr.Register(ctx, req.Path, req.OriginalPath)
	if err != nil {
		return nil, err
	}
	result := &AnalyzeResult{Created: created}

	switch rec.Status {
	case types.StatusPending:
	case types.StatusCompleted:
		if !req.Force {
			result.StatusView = lifecycle.ViewOf(rec)
			result.Cached = true
			return result, nil
		}
		if rec, err = uc.mgr.Reanalyze(ctx, rec.ID, true); err != nil {
			return nil, err
		}
	case types.StatusFailed:
		if rec, err = uc.mgr.Reanalyze(ctx, rec.ID, true); err != nil {
			return nil, err
		}
	case types.StatusInProgress, types.StatusArchived:
		result.StatusView = lifecycle.ViewOf(rec)
		return result, apperrors.New(apperrors.ErrInvalidTransition,
			fmt.Sprintf("%s is %s", rec.ID, rec.Status))
	}

	rec, err = uc.mgr.StartAnalysis(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	log := uc.logger.WithContext(logger.WithFileID(ctx, rec.ID))
	start := time.Now()
	analysis, err := uc.analyze(ctx, rec, promptID)
	if err != nil {
		failed, markErr := uc.mgr.MarkFailed(context.WithoutCancel(ctx), rec.ID, failureMessage(err))
		if markErr != nil {
			log.Error("failed to record analysis failure", zap.Error(markErr))
			return nil, err
		}
		log.Warn("analysis failed",
			zap.String("prompt_id", promptID),
			zap.Error(err))
		result.StatusView = lifecycle.ViewOf(failed)
		return result, err
	}

	done, err := uc.mgr.CompleteAnalysis(ctx, rec.ID, analysis)
	if err != nil {
		return nil, err
	}
	log.Info("file analyzed",
		zap.String("prompt_id", promptID),
		zap.Int("generation", done.Generation),
		zap.Duration("elapsed", time.Since(start)))

	result.StatusView = lifecycle.ViewOf(done)
	return result, nil
}

func (uc *AnalysisUseCase) analyze(ctx context.Context, rec *registry.FileRecord, promptID string) (string, error) {
	f, err := uc.fs.Open(uc.mgr.Path(rec.FileName))
	if err != nil {
		return "", apperrors.NewIOError(err, "open "+rec.FileName)
	}
	defer f.Close()

	text, err := uc.extractor.Extract(ctx, rec.OriginalName, f)
	if err != nil {
		return "", err
	}
	return uc.analyzer.Analyze(ctx, text, promptID)
}

func failureMessage(err error) string {
	if d := apperrors.GetDetails(err); d != "" {
		return d
	}
	return err.Error()
}
