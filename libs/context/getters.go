package context

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// GetLogger - return the logger from the context if one has been associated
func GetLogger(ctx context.Context) (*zerolog.Logger, error) {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		return nil, fmt.Errorf("logger: %w", ErrNotInContext)
	}
	return logger, nil
}

// GetStringFromContext - given a CTXKey return the string value from the context if it exists
func GetStringFromContext(ctx context.Context, key CTXKey) (string, error) {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("%s: %w", key, ErrValueWrongType)
	}
	return "", fmt.Errorf("%s: %w", key, ErrNotInContext)
}

// GetBoolFromContext - given a CTXKey return the bool value from the context if it exists
func GetBoolFromContext(ctx context.Context, key CTXKey) (bool, error) {
	if v := ctx.Value(key); v != nil {
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return false, fmt.Errorf("%s: %w", key, ErrValueWrongType)
	}
	return false, fmt.Errorf("%s: %w", key, ErrNotInContext)
}

// GetDurationFromContext - given a CTXKey return the duration value from the context if it exists
func GetDurationFromContext(ctx context.Context, key CTXKey) (time.Duration, error) {
	if v := ctx.Value(key); v != nil {
		if d, ok := v.(time.Duration); ok {
			return d, nil
		}
		return 0, fmt.Errorf("%s: %w", key, ErrValueWrongType)
	}
	return 0, fmt.Errorf("%s: %w", key, ErrNotInContext)
}

// GetLogLevelFromContext - given a CTXKey return the zerolog level from the context if it exists
func GetLogLevelFromContext(ctx context.Context, key CTXKey) (zerolog.Level, error) {
	if v := ctx.Value(key); v != nil {
		if level, ok := v.(zerolog.Level); ok {
			return level, nil
		}
		return zerolog.InfoLevel, fmt.Errorf("%s: %w", key, ErrValueWrongType)
	}
	return zerolog.InfoLevel, fmt.Errorf("%s: %w", key, ErrNotInContext)
}
