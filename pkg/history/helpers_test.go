package history_test

import "github.com/aretw0/loom/pkg/callback"

func callbackCounter(n *int) *callback.Callback {
	return callback.New(func() { *n++ })
}
