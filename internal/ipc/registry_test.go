package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterRejectsDuplicateChannel(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	handler := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }

	require.NoError(t, r.Register("get-sites", handler))
	err := r.Register("get-sites", handler)
	assert.ErrorIs(t, err, core.ErrDuplicateHandler)
}

func TestInvokeUnknownChannelReturnsNotFoundEnvelope(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	envelope := r.Invoke(context.Background(), "missing-channel", nil)

	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(core.CodeNotFound), envelope.Error.Code)
}

func TestInvokeSuccessWrapsData(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	require.NoError(t, r.Register("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["value"], nil
	}))

	envelope := r.Invoke(context.Background(), "echo", map[string]any{"value": "hello"})
	assert.True(t, envelope.Success)
	assert.Equal(t, "hello", envelope.Data)
	assert.Nil(t, envelope.Error)
}

func TestInvokeHandlerErrorWrapsAppError(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	require.NoError(t, r.Register("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, core.NewValidationError("ipc.boom", "bad input", nil)
	}))

	envelope := r.Invoke(context.Background(), "boom", nil)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(core.CodeValidation), envelope.Error.Code)
	assert.Equal(t, "bad input", envelope.Error.Message)
}

func TestInvokeHandlerErrorWrapsPlainErrorAsInternal(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	require.NoError(t, r.Register("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("unexpected failure")
	}))

	envelope := r.Invoke(context.Background(), "boom", nil)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(core.CodeInternal), envelope.Error.Code)
	assert.Equal(t, "unexpected failure", envelope.Error.Message)
}

func TestChannelsListsEveryRegisteredName(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	handler := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }
	require.NoError(t, r.Register("a", handler))
	require.NoError(t, r.Register("b", handler))

	assert.ElementsMatch(t, []string{"a", "b"}, r.Channels())
}

func TestVerifyHandlersReportsInventory(t *testing.T) {
	r := NewRegistry(nil, testLogger())
	handler := func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }
	require.NoError(t, r.Register("a", handler))

	out, err := r.VerifyHandlers(context.Background(), nil)
	require.NoError(t, err)
	result, ok := out.(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a"}, result["channels"])
}
