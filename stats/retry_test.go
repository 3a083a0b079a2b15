package stats

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWithRetriesExhaustsAttempts(t *testing.T) {
	assert := assert.New(t)

	failure := errors.New("always fails")
	calls := 0
	observed := 0

	err := WithRetries(
		context.Background(),
		3,
		time.Millisecond,
		func(attempt int, wait time.Duration, err error) {
			observed++
			assert.Equal(calls, attempt)
			assert.Equal(failure, errors.Cause(err))
		},
		func(ctx context.Context) error {
			calls++
			return failure
		},
	)

	assert.Equal(failure, errors.Cause(err))
	assert.Equal(3, calls)
	assert.Equal(2, observed)
}

func TestWithRetriesSucceedsAfterFailure(t *testing.T) {
	assert := assert.New(t)

	calls := 0
	err := WithRetries(context.Background(), 3, time.Millisecond, nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(err)
	assert.Equal(2, calls)
}

func TestWithRetriesBackoffDoubles(t *testing.T) {
	assert := assert.New(t)

	var waits []time.Duration

	err := WithRetries(
		context.Background(),
		3,
		time.Millisecond,
		func(attempt int, wait time.Duration, err error) {
			waits = append(waits, wait)
		},
		func(ctx context.Context) error {
			return errors.New("nope")
		},
	)

	assert.Error(err)
	assert.Equal([]time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestWithRetriesHonorsContext(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetries(ctx, 5, time.Hour, nil, func(ctx context.Context) error {
		calls++
		return errors.New("still failing")
	})

	assert.Error(err)
	assert.Equal(1, calls)
}
