package ipc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func TestStringParamRequiresNonEmptyValue(t *testing.T) {
	_, err := stringParam(map[string]any{}, "siteId")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	v, err := stringParam(map[string]any{"siteId": "site-1"}, "siteId")
	require.NoError(t, err)
	assert.Equal(t, "site-1", v)
}

func TestDecodeParamRoundTripsStruct(t *testing.T) {
	params := map[string]any{
		"site": map[string]any{"identifier": "site-1", "name": "Example"},
	}
	site, err := decodeParam[core.Site](params, "site")
	require.NoError(t, err)
	assert.Equal(t, "site-1", site.Identifier)
	assert.Equal(t, "Example", site.Name)
}

func TestDecodeParamMissingKeyIsValidationError(t *testing.T) {
	_, err := decodeParam[core.Site](map[string]any{}, "site")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestDecodeParamMalformedShapeIsValidationError(t *testing.T) {
	params := map[string]any{"site": "not-an-object"}
	_, err := decodeParam[core.Site](params, "site")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestRegisterDefaultHandlersWiresEveryChannel(t *testing.T) {
	reg := NewRegistry(nil, testLogger())
	svc := &Services{}

	require.NoError(t, RegisterDefaultHandlers(reg, svc))

	expected := []string{
		"get-sites", "add-site", "update-site", "remove-site", "delete-all-sites",
		"add-monitor", "update-monitor", "remove-monitor", "check-site-now",
		"start-monitoring-for-monitor", "stop-monitoring-for-monitor",
		"start-monitoring-for-site", "stop-monitoring-for-site",
		"start-monitoring", "stop-monitoring",
		"get-history-limit", "update-history-limit", "save-sqlite-backup",
		"diagnostics:verify-handlers",
	}
	assert.ElementsMatch(t, expected, reg.Channels())
}

func TestRegisterDefaultHandlersRejectsDoubleRegistration(t *testing.T) {
	reg := NewRegistry(nil, testLogger())
	svc := &Services{}
	require.NoError(t, RegisterDefaultHandlers(reg, svc))
	err := RegisterDefaultHandlers(reg, svc)
	assert.Error(t, err)
}

func TestDiagnosticsVerifyHandlersChannelIsInvokable(t *testing.T) {
	reg := NewRegistry(nil, testLogger())
	svc := &Services{}
	require.NoError(t, RegisterDefaultHandlers(reg, svc))

	envelope := reg.Invoke(context.Background(), "diagnostics:verify-handlers", nil)
	assert.True(t, envelope.Success)
}
