// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package testcontext implements a context for use in tests.
package testcontext

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 3 * time.Minute

// Context is a context that incorporates temporary directories and
// goroutine tracking for tests.
type Context struct {
	context.Context
	cancel context.CancelFunc

	group *errgroup.Group
	test  testing.TB

	once      sync.Once
	directory string
}

// New creates a new test context.
func New(test testing.TB) *Context {
	parent, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	group, ctx := errgroup.WithContext(parent)
	return &Context{
		Context: ctx,
		cancel:  cancel,
		group:   group,
		test:    test,
	}
}

// Go runs fn in a goroutine.
// Call Wait to check the result.
func (ctx *Context) Go(fn func() error) {
	ctx.test.Helper()
	ctx.group.Go(fn)
}

// Check calls fn and checks result.
func (ctx *Context) Check(fn func() error) {
	ctx.test.Helper()
	err := fn()
	if err != nil {
		ctx.test.Fatal(err)
	}
}

// Dir returns a directory path inside temp.
func (ctx *Context) Dir(subs ...string) string {
	ctx.test.Helper()

	ctx.once.Do(func() {
		var err error
		ctx.directory, err = os.MkdirTemp("", sanitize(ctx.test.Name()))
		if err != nil {
			ctx.test.Fatal(err)
		}
	})

	dir := filepath.Join(append([]string{ctx.directory}, subs...)...)
	_ = os.MkdirAll(dir, 0744)
	return dir
}

// File returns a filepath inside temp.
func (ctx *Context) File(subs ...string) string {
	ctx.test.Helper()

	if len(subs) == 0 {
		ctx.test.Fatal("expected more than one argument")
	}

	dir := ctx.Dir(subs[:len(subs)-1]...)
	return filepath.Join(dir, subs[len(subs)-1])
}

// Cleanup waits everything to be completed,
// checks errors and tries to cleanup directories.
func (ctx *Context) Cleanup() {
	ctx.test.Helper()

	defer ctx.deleteTemporary()
	defer ctx.cancel()

	err := ctx.group.Wait()
	if err != nil {
		ctx.test.Fatal(err)
	}
}

// deleteTemporary tries to delete temporary directory.
func (ctx *Context) deleteTemporary() {
	if ctx.directory == "" {
		return
	}
	err := os.RemoveAll(ctx.directory)
	if err != nil {
		ctx.test.Fatal(err)
	}
}

func sanitize(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch r {
		case '/', '\\', ' ':
			out[i] = '-'
		}
	}
	return string(out)
}
