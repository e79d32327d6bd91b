package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	expiry := &stubJob{name: "pool-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	registry, err := NewRegistry(nil, expiry)
	require.NoError(t, err)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(retention))

	jobs := registry.Jobs()
	require.Equal(t, []Job{expiry, retention}, jobs)
	require.Equal(t, []string{"pool-expiry", "outbox-retention"}, registry.Names())

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "pool-expiry"}, &stubJob{name: "pool-expiry"})
	require.ErrorContains(t, err, "registered twice")

	registry, err := NewRegistry()
	require.NoError(t, err)
	require.Error(t, registry.Register(&stubJob{}))
	require.Empty(t, registry.Jobs())
}
