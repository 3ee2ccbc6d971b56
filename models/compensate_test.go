package models

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetachedSurvivesExpiredParent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	parent, cancel := context.WithTimeout(logger.WithContext(context.Background()), time.Nanosecond)
	defer cancel()
	<-parent.Done()
	require.ErrorIs(t, parent.Err(), context.DeadlineExceeded)

	called := false
	err := detached(parent, time.Second, func(ctx context.Context) error {
		called = true
		assert.NoError(t, ctx.Err())
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

		zerolog.Ctx(ctx).Info().Msg("undo")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, buf.String(), "undo")
}

func TestDetachedIsBounded(t *testing.T) {
	err := detached(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
