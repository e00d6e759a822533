package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoriesRegisterLazilyAndOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("test", reg)

	// accessing twice must return the same instance and register once.
	first := r.Checker()
	second := r.Checker()
	assert.Same(t, first, second)

	// vector collectors only show up in Gather once they hold a child.
	first.ChecksTotal.WithLabelValues("http", "up").Inc()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestUnaccessedCategoryNeverRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("test", reg)
	_ = r.Scheduler()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		assert.NotContains(t, mf.GetName(), "checker")
	}
}

func TestEveryCategoryRegistersUnderNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("uptimewatcher", reg)

	r.Scheduler()
	r.Checker()
	r.Coordinator()
	r.EventBus()
	r.IPC()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
	for _, mf := range mfs {
		assert.Contains(t, mf.GetName(), "uptimewatcher_")
	}
}

func TestDefaultReturnsSameRegistryAcrossCalls(t *testing.T) {
	assert.Same(t, Default(), Default())
}
