// Package service 文件登记、分析与状态查询的 HTTP 接口
package service

import (
	"context"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/analyzer"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/biz"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// PromptLister 提示词目录
type PromptLister interface {
	List() []analyzer.Prompt
}

// Config 上传与清理配置
type Config struct {
	UploadTempDir string
	MaxUploadMB   int64
	RetentionDays int
}

type FileService struct {
	uc      *biz.AnalysisUseCase
	mgr     *lifecycle.Manager
	prompts PromptLister
	cfg     Config
	logger  *logger.Logger
}

func NewFileService(uc *biz.AnalysisUseCase, prompts PromptLister, cfg Config, log *logger.Logger) *FileService {
	if cfg.UploadTempDir == "" {
		cfg.UploadTempDir = os.TempDir()
	}
	return &FileService{
		uc:      uc,
		mgr:     uc.Manager(),
		prompts: prompts,
		cfg:     cfg,
		logger:  logger.OrGlobal(log).Named("file_service"),
	}
}

// RegisterRoutes 注册路由
func (s *FileService) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", s.Upload)
		files.POST("/analyze", s.Analyze)

		files.GET("/status", s.Status)
		files.GET("/scan", s.Scan)
		files.POST("/scan/analyze", s.ScanAnalyze)
		files.GET("/statistics", s.Statistics)
		files.POST("/cleanup", s.Cleanup)
		files.POST("/reconcile", s.Reconcile)

		files.GET("/:id", s.Get)
		files.GET("/:id/analysis", s.GetAnalysis)
		files.POST("/:id/start", s.Start)
		files.POST("/:id/complete", s.Complete)
		files.POST("/:id/fail", s.Fail)
		files.POST("/:id/archive", s.Archive)
		files.POST("/:id/reanalyze", s.Reanalyze)
	}

	r.GET("/prompts", s.ListPrompts)
}

// Upload 登记上传文件，analyze=true 时同时分析
func (s *FileService) Upload(c *gin.Context) {
	s.limitBody(c)
	if c.PostForm("analyze") == "true" {
		s.Analyze(c)
		return
	}

	path, header, cleanup, err := s.saveUpload(c)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer cleanup()

	rec, created, err := s.mgr.Register(c.Request.Context(), path, header.Filename)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	resp := RegisterResponse{StatusView: lifecycle.ViewOf(rec), Created: created}
	if created {
		response.Created(c, resp)
		return
	}
	response.Success(c, resp)
}

// Analyze 同步登记并分析上传文件
func (s *FileService) Analyze(c *gin.Context) {
	s.limitBody(c)
	path, header, cleanup, err := s.saveUpload(c)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer cleanup()

	force, _ := strconv.ParseBool(c.PostForm("force"))
	res, err := s.uc.Process(c.Request.Context(), biz.AnalyzeRequest{
		Path:         path,
		OriginalPath: header.Filename,
		PromptID:     c.PostForm("prompt_id"),
		Force:        force,
	})
	switch {
	case apperrors.Is(err, apperrors.ErrNoTextExtracted):
		response.ErrorWithData(c, apperrors.ErrNoTextExtracted,
			ConfirmationResponse{ConfirmationRequired: true, Result: res}, header.Filename)
		return
	case err != nil && res != nil:
		_ = c.Error(err)
		response.ErrorWithData(c, apperrors.ExtractCode(err), res, apperrors.GetDetails(err))
		return
	case err != nil:
		response.HandleError(c, err)
		return
	}
	response.Success(c, res)
}

func (s *FileService) limitBody(c *gin.Context) {
	if s.cfg.MaxUploadMB > 0 && c.Request.MultipartForm == nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadMB<<20)
	}
}

// saveUpload 将 multipart 的 file 字段保存到新建临时目录，保留客户端文件名；
// cleanup 删除该目录
func (s *FileService) saveUpload(c *gin.Context) (string, *multipart.FileHeader, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, nil, apperrors.NewBadRequestError("invalid file or field name is not 'file'")
	}
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", nil, nil, apperrors.NewBadRequestError("invalid file name")
	}

	log := s.logger.WithContext(c.Request.Context())
	dir := filepath.Join(s.cfg.UploadTempDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, nil, apperrors.NewIOError(err, "create upload dir")
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove upload", zap.String("dir", dir), zap.Error(err))
		}
	}

	path := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(header, path); err != nil {
		cleanup()
		return "", nil, nil, apperrors.NewIOError(err, "save upload")
	}
	header.Filename = name

	log.Info("file uploaded",
		zap.String("filename", name),
		zap.Int64("size", header.Size))
	return path, header, cleanup, nil
}

// Get 获取文件记录
func (s *FileService) Get(c *gin.Context) {
	rec, err := s.mgr.Get(c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, rec)
}

// GetAnalysis 获取分析内容，format=html 时返回 HTML
func (s *FileService) GetAnalysis(c *gin.Context) {
	rec, err := s.mgr.Get(c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if rec.Analysis == "" {
		response.ErrorWithCode(c, apperrors.ErrNotFound, "no analysis stored for "+rec.ID)
		return
	}

	if c.Query("format") == "html" {
		html, err := biz.RenderAnalysis(rec.Analysis)
		if err != nil {
			response.HandleError(c, apperrors.Wrap(err, apperrors.ErrInternalServer, "render analysis"))
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}
	response.Success(c, AnalysisResponse{FileID: rec.ID, Status: rec.Status.String(), Analysis: rec.Analysis})
}

// Start 开始分析 pending -> in_progress
func (s *FileService) Start(c *gin.Context) {
	s.respondTransition(c, func(ctx context.Context, id string) (lifecycle.StatusView, error) {
		rec, err := s.mgr.StartAnalysis(ctx, id)
		if err != nil {
			return lifecycle.StatusView{}, err
		}
		return lifecycle.ViewOf(rec), nil
	})
}

// Complete 完成分析 in_progress -> completed
func (s *FileService) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s.respondTransition(c, func(ctx context.Context, id string) (lifecycle.StatusView, error) {
		rec, err := s.mgr.CompleteAnalysis(ctx, id, req.Analysis)
		if err != nil {
			return lifecycle.StatusView{}, err
		}
		return lifecycle.ViewOf(rec), nil
	})
}

// Fail 标记失败 in_progress -> failed
func (s *FileService) Fail(c *gin.Context) {
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s.respondTransition(c, func(ctx context.Context, id string) (lifecycle.StatusView, error) {
		rec, err := s.mgr.MarkFailed(ctx, id, req.Error)
		if err != nil {
			return lifecycle.StatusView{}, err
		}
		return lifecycle.ViewOf(rec), nil
	})
}

// Archive 归档 completed|failed -> archived
func (s *FileService) Archive(c *gin.Context) {
	s.respondTransition(c, func(ctx context.Context, id string) (lifecycle.StatusView, error) {
		rec, err := s.mgr.Archive(ctx, id)
		if err != nil {
			return lifecycle.StatusView{}, err
		}
		return lifecycle.ViewOf(rec), nil
	})
}

// Reanalyze 重新分析 completed|failed -> pending，需要 force
func (s *FileService) Reanalyze(c *gin.Context) {
	var req ReanalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if q, ok := c.GetQuery("force"); ok {
		req.Force, _ = strconv.ParseBool(q)
	}
	s.respondTransition(c, func(ctx context.Context, id string) (lifecycle.StatusView, error) {
		rec, err := s.mgr.Reanalyze(ctx, id, req.Force)
		if err != nil {
			return lifecycle.StatusView{}, err
		}
		return lifecycle.ViewOf(rec), nil
	})
}

func (s *FileService) respondTransition(c *gin.Context, fn func(ctx context.Context, id string) (lifecycle.StatusView, error)) {
	view, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, view)
}

// Status 按路径查询状态
func (s *FileService) Status(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.BadRequest(c, "path is required")
		return
	}
	view, err := s.mgr.GetStatus(c.Request.Context(), path)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, view)
}

// Scan 扫描目录
func (s *FileService) Scan(c *gin.Context) {
	dir := c.Query("dir")
	if dir == "" {
		response.BadRequest(c, "dir is required")
		return
	}
	entries, err := s.mgr.Scan(c.Request.Context(), dir)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"dir": dir, "total": len(entries), "files": entries})
}

// ScanAnalyze 分析目录下尚未分析的文件
func (s *FileService) ScanAnalyze(c *gin.Context) {
	var req ScanAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	report, err := s.uc.AnalyzeDirectory(c.Request.Context(), req.Dir, req.PromptID, req.Force)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, report)
}

// Statistics 各状态统计
func (s *FileService) Statistics(c *gin.Context) {
	response.Success(c, s.mgr.Statistics())
}

// Cleanup 删除超过保留天数的归档文件，days 缺省取配置
func (s *FileService) Cleanup(c *gin.Context) {
	days := s.cfg.RetentionDays
	if q := c.Query("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			response.BadRequest(c, "days must be an integer")
			return
		}
		days = n
	}
	deleted, err := s.mgr.Cleanup(c.Request.Context(), days)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, CleanupResponse{Deleted: deleted, RetentionDays: days})
}

// Reconcile 对账
func (s *FileService) Reconcile(c *gin.Context) {
	report, err := s.mgr.Reconcile(c.Request.Context())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, report)
}

// ListPrompts 提示词列表
func (s *FileService) ListPrompts(c *gin.Context) {
	if s.prompts == nil {
		response.Success(c, []analyzer.Prompt{})
		return
	}
	response.Success(c, s.prompts.List())
}
