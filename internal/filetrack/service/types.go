package service

import (
	"github.com/lk2023060901/docsense-backend/internal/filetrack/biz"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
)

// RegisterResponse 上传登记响应
type RegisterResponse struct {
	lifecycle.StatusView
	Created bool `json:"created"`
}

// CompleteRequest 完成分析请求
type CompleteRequest struct {
	Analysis string `json:"analysis" binding:"required"`
}

// FailRequest 标记失败请求
type FailRequest struct {
	Error string `json:"error" binding:"required"`
}

// ReanalyzeRequest 重新分析请求
type ReanalyzeRequest struct {
	Force bool `json:"force"`
}

// ScanAnalyzeRequest 目录批量分析请求
type ScanAnalyzeRequest struct {
	Dir      string `json:"dir" binding:"required"`
	PromptID string `json:"prompt_id"`
	Force    bool   `json:"force"`
}

// AnalysisResponse 分析内容
type AnalysisResponse struct {
	FileID   string `json:"file_id"`
	Status   string `json:"status"`
	Analysis string `json:"analysis"`
}

// CleanupResponse 清理结果
type CleanupResponse struct {
	Deleted       int `json:"deleted"`
	RetentionDays int `json:"retention_days"`
}

// ConfirmationResponse 未提取到文本时随 422 返回
type ConfirmationResponse struct {
	ConfirmationRequired bool               `json:"confirmation_required"`
	Result               *biz.AnalyzeResult `json:"result,omitempty"`
}
