//go:build linux

package memsample_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/memsample"
)

func TestLinuxSampler_SamplesSelf(t *testing.T) {
	t.Parallel()

	sampler := memsample.NewSampler()

	sample, err := sampler.Sample(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.Positive(t, sample.RSSBytes)
	assert.Equal(t, os.Getpid(), sample.PID)
}

func TestLinuxSampler_ProcessGone(t *testing.T) {
	t.Parallel()

	sampler := memsample.NewSampler()

	_, err := sampler.Sample(context.Background(), 1<<30)
	require.Error(t, err)
	assert.ErrorIs(t, err, memsample.ErrProcessGone)
}
