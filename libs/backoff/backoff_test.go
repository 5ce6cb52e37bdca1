package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openmall/mall-go/libs/backoff/retrypolicy"
	testutils "github.com/openmall/mall-go/libs/test"
)

type mockRetry struct {
	fnCalculateNextDelay func() time.Duration
}

func (m *mockRetry) CalculateNextDelay() time.Duration {
	if m.fnCalculateNextDelay == nil {
		return 0
	}
	return m.fnCalculateNextDelay()
}

func TestRetry_CxtDone(t *testing.T) {
	ctx, done := context.WithCancel(context.Background())

	operation := func() (interface{}, error) {
		assert.Fail(t, "should not have been executed")
		return nil, nil
	}

	policy := &mockRetry{}

	isRetriable := func(error) bool {
		assert.Fail(t, "should not have been executed")
		return false
	}

	done()
	response, err := Retry(ctx, operation, policy, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_IsRetriable_False(t *testing.T) {
	ctx, done := context.WithCancel(context.Background())
	defer done()

	expected := errors.New(testutils.RandomString())

	operation := func() (interface{}, error) {
		return nil, expected
	}

	policy := &mockRetry{}

	isRetriable := func(error) bool {
		return false
	}

	response, err := Retry(ctx, operation, policy, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, expected)
}

func TestRetry_CalculateNextDelay_Done(t *testing.T) {
	ctx, done := context.WithCancel(context.Background())
	defer done()

	expected := errors.New(testutils.RandomString())

	operation := func() (interface{}, error) {
		return nil, expected
	}

	policy := &mockRetry{
		fnCalculateNextDelay: func() time.Duration {
			return retrypolicy.Done
		},
	}

	isRetriable := func(error) bool {
		return true
	}

	response, err := Retry(ctx, operation, policy, isRetriable)

	assert.Nil(t, response)
	assert.ErrorIs(t, err, expected)
}

func TestRetry(t *testing.T) {
	ctx, done := context.WithCancel(context.Background())
	defer done()

	count := 0
	attempts := 2

	operation := func() (interface{}, error) {
		if count < attempts {
			count++
			return nil, errors.New(testutils.RandomString())
		}
		// return on third attempt
		return "success", nil
	}

	delays := 0
	policy := &mockRetry{
		fnCalculateNextDelay: func() time.Duration {
			delays++
			return time.Second * 0
		},
	}

	isRetriable := func(error) bool {
		return true
	}

	response, err := Retry(ctx, operation, policy, isRetriable)

	assert.Nil(t, err)
	assert.NotNil(t, response)
	assert.Equal(t, attempts, delays)
}
