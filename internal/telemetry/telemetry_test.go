package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/taxomine/pkg/adelic"
	"github.com/kittclouds/taxomine/pkg/sheaf"
)

func TestObserveScan(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	res := &sheaf.Result{
		Windows:    4,
		Unresolved: []int{2},
		Cuts:       []sheaf.LogicCut{{Before: 0, After: 1}},
		Sections: []*sheaf.GlobalSection{
			{
				Windows: []*sheaf.Window{{Partial: map[uint64]map[string]int{5: {"a": 2, "b": 3}}}},
				Excluded: []adelic.Exclusion{
					{Entity: "a", Reason: adelic.MissingResidue},
					{Entity: "b", Reason: adelic.InconsistentResidue},
					{Entity: "c", Reason: adelic.InconsistentResidue},
				},
			},
			{},
		},
	}
	m.ObserveScan(res, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Windows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unresolved))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cuts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PartialLifts.WithLabelValues("5")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Excluded.WithLabelValues("InconsistentResidue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Excluded.WithLabelValues("MissingResidue")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ScanDuration))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveScan(&sheaf.Result{}, time.Second) })
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
