package testutil

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// PromCounterHasValue reports whether the gathered metrics contain a counter
// with the given name, label values and value.
func PromCounterHasValue(t testing.TB, metrics []*dto.MetricFamily, value float64, name string, label ...string) bool {
	t.Helper()
	for _, family := range metrics {
		if family.GetName() != name {
			continue
		}
	metricsLoop:
		for _, m := range family.GetMetric() {
			require.Equal(t, len(label), len(m.GetLabel()))
			for i, lv := range label {
				if lv != m.GetLabel()[i].GetValue() {
					continue metricsLoop
				}
			}
			return value == m.GetCounter().GetValue()
		}
	}
	return false
}

// PromHistogramSampleCount returns the sample count of the named histogram
// with the given label values, or zero when absent.
func PromHistogramSampleCount(t testing.TB, metrics []*dto.MetricFamily, name string, label ...string) uint64 {
	t.Helper()
	for _, family := range metrics {
		if family.GetName() != name {
			continue
		}
	metricsLoop:
		for _, m := range family.GetMetric() {
			require.Equal(t, len(label), len(m.GetLabel()))
			for i, lv := range label {
				if lv != m.GetLabel()[i].GetValue() {
					continue metricsLoop
				}
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}
