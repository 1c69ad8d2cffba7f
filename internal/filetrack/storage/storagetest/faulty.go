// Package storagetest provides FS doubles for tests.
package storagetest

import (
	"io/fs"
	"sync"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/storage"
)

// Op names passed to a FailFunc
const (
	OpMove   = "move"
	OpCopy   = "copy"
	OpRemove = "remove"
	OpWrite  = "write"
)

// FailFunc decides whether the n-th call (1-based) of op fails. name is
// the source for moves and the destination for copies.
type FailFunc func(op, name string, n int) error

// Faulty wraps an FS and injects errors before delegating
type Faulty struct {
	storage.FS

	mu     sync.Mutex
	calls  map[string]int
	failFn FailFunc
}

// NewFaulty wraps inner; a nil fn never fails
func NewFaulty(inner storage.FS, fn FailFunc) *Faulty {
	return &Faulty{FS: inner, calls: make(map[string]int), failFn: fn}
}

// SetFailFunc swaps the failure policy
func (f *Faulty) SetFailFunc(fn FailFunc) {
	f.mu.Lock()
	f.failFn = fn
	f.mu.Unlock()
}

// Calls returns how many times op was invoked
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) check(op, name string) error {
	f.mu.Lock()
	f.calls[op]++
	n := f.calls[op]
	fn := f.failFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(op, name, n)
}

func (f *Faulty) Move(src, dst string) error {
	if err := f.check(OpMove, src); err != nil {
		return err
	}
	return f.FS.Move(src, dst)
}

func (f *Faulty) Copy(src, dst string) error {
	if err := f.check(OpCopy, dst); err != nil {
		return err
	}
	return f.FS.Copy(src, dst)
}

func (f *Faulty) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return err
	}
	return f.FS.Remove(name)
}

func (f *Faulty) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	if err := f.check(OpWrite, name); err != nil {
		return err
	}
	return f.FS.WriteFileAtomic(name, data, perm)
}
