package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/ai-router/internal/types"
)

func TestStaticProberSucceedsByDefault(t *testing.T) {
	prober := NewStaticProber("sim", 0)

	result, err := prober.Probe(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "sim", prober.ProviderID())
	assert.Equal(t, 1, prober.ProbeCount())
}

func TestStaticProberScriptedFailure(t *testing.T) {
	prober := NewStaticProber("sim", 0)
	prober.SetFailing(true, "maintenance window")

	_, err := prober.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance window")

	prober.SetFailing(false, "")
	_, err = prober.Probe(context.Background())
	assert.NoError(t, err)
}

func TestStaticProberReportsQuota(t *testing.T) {
	prober := NewStaticProber("sim", 0)
	prober.SetQuota(&types.QuotaUsage{Used: 90, Limit: 100, Percentage: 90})

	result, err := prober.Probe(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Quota)
	assert.Equal(t, float64(90), result.Quota.Percentage)
}

func TestStaticProberRespectsContextDuringLatency(t *testing.T) {
	prober := NewStaticProber("sim", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := prober.Probe(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
