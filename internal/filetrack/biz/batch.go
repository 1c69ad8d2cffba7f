package biz

import (
	"context"
	"time"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	"github.com/lk2023060901/docsense-backend/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// BatchItem 目录分析中单个文件的结果
type BatchItem struct {
	Path   string         `json:"path"`
	Result *AnalyzeResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// BatchReport 批量分析报告
type BatchReport struct {
	Dir       string        `json:"dir"`
	Submitted int           `json:"submitted"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Items     []BatchItem   `json:"items"`
	Duration  time.Duration `json:"duration"`
}

// needsAnalysis 扫描到的文件是否需要提交分析
func needsAnalysis(status types.Status, force bool) bool {
	switch status {
	case types.StatusUnanalyzed, types.StatusPending, types.StatusFailed:
		return true
	case types.StatusCompleted:
		return force
	}
	return false
}

// AnalyzeDirectory 扫描 dir，在协程池中分析尚未分析的文件；结果保持扫描顺序
func (uc *AnalysisUseCase) AnalyzeDirectory(ctx context.Context, dir, promptID string, force bool) (*BatchReport, error) {
	start := time.Now()
	entries, err := uc.mgr.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Dir: dir}
	var pending []<-chan workerpool.TaskResult[*AnalyzeResult]
	var paths []string

	for _, e := range entries {
		if !needsAnalysis(e.Status, force) {
			report.Skipped++
			continue
		}
		req := AnalyzeRequest{Path: e.Path, PromptID: promptID, Force: force}
		pending = append(pending, workerpool.SubmitWithResult(uc.pool, func() (*AnalyzeResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return uc.Process(ctx, req)
		}))
		paths = append(paths, e.Path)
	}
	report.Submitted = len(pending)

	for i, ch := range pending {
		res := <-ch
		item := BatchItem{Path: paths[i], Result: res.Data}
		if res.Error != nil {
			item.Error = failureMessage(res.Error)
			report.Failed++
		} else {
			report.Completed++
		}
		report.Items = append(report.Items, item)
	}
	report.Duration = time.Since(start)

	uc.logger.Info("directory analyzed",
		zap.String("dir", dir),
		zap.Int("submitted", report.Submitted),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Duration))
	return report, nil
}
