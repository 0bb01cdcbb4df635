package log

import (
	"context"
	"log"
	"os"

	"github.com/cleitonmarx/symbiont/depend"
)

// InitLogger is the initializer for the logger dependency. The prefix is
// configurable so multiple copilot processes sharing one log stream can be
// told apart.
type InitLogger struct {
	Prefix string `config:"LOG_PREFIX" default:""`
}

// Initialize registers the logger in the dependency container.
func (il InitLogger) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register(log.New(os.Stdout, il.Prefix, log.Lmsgprefix))
	return ctx, nil
}
