package main

import (
	"context"

	"github.com/sells-group/facility-atlas/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
