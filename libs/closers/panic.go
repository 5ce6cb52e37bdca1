package closers

import (
	"context"
	"errors"
	"io"

	"github.com/openmall/mall-go/libs/logging"
)

// Panic calls Close on the specified closer, panicking on error
func Panic(ctx context.Context, c io.Closer) {
	logger := logging.Logger(ctx, "closers.Panic")
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Error().Err(err).Msg("error attempting to close")
		if errors.Is(err, context.Canceled) || err.Error() == "context canceled" {
			// the context timeout on the http client will manifest into this
			// if the stream is not completed in time
			return
		}
		panic(err.Error())
	}
}
