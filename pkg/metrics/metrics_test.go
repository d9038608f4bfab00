package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMutation(t *testing.T) {
	ok := testutil.ToFloat64(mutationsTotal.WithLabelValues("test_kind", "ok"))
	failed := testutil.ToFloat64(mutationsTotal.WithLabelValues("test_kind", "error"))

	RecordMutation("test_kind", nil)
	RecordMutation("test_kind", errors.New("boom"))
	RecordMutation("test_kind", nil)

	assert.Equal(t, ok+2, testutil.ToFloat64(mutationsTotal.WithLabelValues("test_kind", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(mutationsTotal.WithLabelValues("test_kind", "error")))
}

func TestRecordRepairIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(counterRepairs.WithLabelValues("likes_count"))
	RecordRepair("likes_count", 0)
	RecordRepair("likes_count", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(counterRepairs.WithLabelValues("likes_count")))
}

func TestGetRegistryGathers(t *testing.T) {
	ObserveRequest("GET", "/health", 200, 5*time.Millisecond)
	RecordCacheLookup(true)

	families, err := GetRegistry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["http_requests_total"])
	assert.True(t, names["nanofeed_cache_lookups_total"])
}
