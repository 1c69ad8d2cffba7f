package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/hasher"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/index"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/lifecycle"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/loader"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/registry"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text, promptID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[strings.TrimSpace(text)] {
		return "", apperrors.New(apperrors.ErrAnalysisFailed, "model unavailable")
	}
	return "# " + promptID + "\n" + strings.ToUpper(text), nil
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	inbox    string
	mgr      *lifecycle.Manager
	analyzer *fakeAnalyzer
	uc       *AnalysisUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	fsys := storage.NewOS()

	mgr, err := lifecycle.NewManager(lifecycle.Options{
		ManagedDir: filepath.Join(root, "managed"),
		Registry:   registry.New(registry.NewJSONStore(filepath.Join(root, "file_registry.json"), fsys), logger.Nop()),
		Index:      index.New(filepath.Join(root, "search_index.json"), fsys, nil),
		Hasher:     hasher.New(fsys, hasher.Config{}, logger.Nop()),
		FS:         fsys,
		Logger:     logger.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Open(context.Background()))

	pool, err := workerpool.New(&workerpool.Config{Workers: 2}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	fa := &fakeAnalyzer{fail: map[string]bool{}}
	inbox := filepath.Join(root, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))

	return &fixture{
		inbox:    inbox,
		mgr:      mgr,
		analyzer: fa,
		uc:       NewAnalysisUseCase(mgr, fsys, loader.NewFactory(), fa, pool, "summary", logger.Nop()),
	}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.inbox, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "memo.txt", "quarterly numbers")

	res, err := f.uc.Process(ctx, AnalyzeRequest{Path: path})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Cached)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Equal(t, "# summary\nQUARTERLY NUMBERS", res.Analysis)
	assert.Contains(t, res.FileName, "-completed.")

	// stored analysis is reused
	again, err := f.uc.Process(ctx, AnalyzeRequest{Path: path})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.False(t, again.Created)
	assert.Equal(t, res.Analysis, again.Analysis)
	assert.Equal(t, 1, f.analyzer.Calls())

	forced, err := f.uc.Process(ctx, AnalyzeRequest{Path: path, PromptID: "risks", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "# risks\nQUARTERLY NUMBERS", forced.Analysis)
	assert.Equal(t, 1, forced.Generation)
	assert.Equal(t, res.FileID, forced.FileID)
	assert.Equal(t, 2, f.analyzer.Calls())

	view, err := f.mgr.GetStatus(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, view.Status)
}

func TestProcessFailureThenRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "flaky.txt", "flaky content")
	f.analyzer.fail["flaky content"] = true

	res, err := f.uc.Process(ctx, AnalyzeRequest{Path: path})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAnalysisFailed))
	require.NotNil(t, res)
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, "model unavailable", res.Error)

	f.analyzer.fail["flaky content"] = false
	res, err = f.uc.Process(ctx, AnalyzeRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status)
	assert.Empty(t, res.Error)
}

func TestProcessExtractionFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blank := f.write(t, "blank.txt", "   \n\t")
	res, err := f.uc.Process(ctx, AnalyzeRequest{Path: blank})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoTextExtracted))
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.Zero(t, f.analyzer.Calls())

	legacy := f.write(t, "sheet.xls", "binary")
	res, err = f.uc.Process(ctx, AnalyzeRequest{Path: legacy})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedFileType))
	assert.Equal(t, types.StatusFailed, res.Status)
}

func TestProcessRejectsArchived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.write(t, "old.txt", "old content")

	res, err := f.uc.Process(ctx, AnalyzeRequest{Path: path})
	require.NoError(t, err)
	_, err = f.mgr.Archive(ctx, res.FileID)
	require.NoError(t, err)

	res, err = f.uc.Process(ctx, AnalyzeRequest{Path: path, Force: true})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, types.StatusArchived, res.Status)
}

func TestProcessRequiresPrompt(t *testing.T) {
	f := newFixture(t)
	f.uc.defaultPrompt = ""

	_, err := f.uc.Process(context.Background(), AnalyzeRequest{Path: f.write(t, "a.txt", "a")})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestAnalyzeDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.write(t, "a.txt", "alpha")
	f.write(t, "b.txt", "beta")
	f.write(t, "nested/c.txt", "gamma")
	f.write(t, "bad.txt", "broken")
	f.analyzer.fail["broken"] = true

	done := f.write(t, "done.txt", "delta")
	_, err := f.uc.Process(ctx, AnalyzeRequest{Path: done})
	require.NoError(t, err)

	report, err := f.uc.AnalyzeDirectory(ctx, f.inbox, "", false)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Submitted)
	assert.Equal(t, 3, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Items, 4)

	var failed []string
	for _, item := range report.Items {
		if item.Error != "" {
			failed = append(failed, filepath.Base(item.Path))
		}
	}
	assert.Equal(t, []string{"bad.txt"}, failed)

	stats := f.mgr.Statistics()
	assert.Equal(t, 4, stats[types.StatusCompleted].Count)
	assert.Equal(t, 1, stats[types.StatusFailed].Count)

	_, err = f.uc.AnalyzeDirectory(ctx, filepath.Join(f.inbox, "missing"), "", false)
	assert.Error(t, err)
}

func TestRenderAnalysis(t *testing.T) {
	out, err := RenderAnalysis("# Title\n\n- one\n- two\n\n<script>x</script>")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<li>one</li>")
	assert.NotContains(t, out, "<script>")

	empty, err := RenderAnalysis("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
