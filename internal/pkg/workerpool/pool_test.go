package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndWait(t *testing.T) {
	p, err := New(&Config{Workers: 3}, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	var n atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int32(20), n.Load())
	stats := p.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Completed)
	assert.Equal(t, 3, p.Cap())
}

func TestSubmitWithResult(t *testing.T) {
	p, err := New(nil, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	ok := <-SubmitWithResult(p, func() (int, error) { return 42, nil })
	require.NoError(t, ok.Error)
	assert.Equal(t, 42, ok.Data)

	boom := errors.New("boom")
	failed := <-SubmitWithResult(p, func() (string, error) { return "", boom })
	assert.ErrorIs(t, failed.Error, boom)

	panicked := <-SubmitWithResult(p, func() (int, error) { panic("bad") })
	assert.Error(t, panicked.Error)
}

func TestSubmitAfterShutdown(t *testing.T) {
	p, err := New(&Config{Workers: 1}, nil)
	require.NoError(t, err)
	p.Shutdown()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	res := <-SubmitWithResult(p, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, res.Error, ErrPoolClosed)
}
