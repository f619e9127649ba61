package a

import (
	"context"
	"time"
)

type Store struct{}

func (s *Store) Query() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second) // want `context.Background\(\) in Query: accept a context.Context from the caller`
	defer cancel()
	_ = ctx
	return nil
}

func load() {
	_ = context.TODO() // want `context.TODO\(\) in load: accept a context.Context from the caller`
}

func spawn() {
	go func() {
		_ = context.Background() // want `context.Background\(\) in spawn`
	}()
}

var pkgCtx = context.Background() // want `context.Background\(\) in package scope`

func init() {
	_ = context.Background()
}

// Stop runs after the caller's context is gone
func (s *Store) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = ctx
}

func ignored() {
	// ctxcheck:ignore process lifetime worker
	_ = context.Background()
	_ = context.TODO() // ctxcheck:ignore
}

func propagated(ctx context.Context) {
	_, cancel := context.WithCancel(ctx)
	cancel()
}
