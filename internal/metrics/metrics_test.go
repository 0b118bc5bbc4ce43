package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads one sample from the registry; labels are name/value pairs
func value(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			have := make(map[string]string)
			for _, pair := range metric.GetLabel() {
				have[pair.GetName()] = pair.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue metrics
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s %v", name, labels)
	return 0
}

func TestRecordModelOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordModelOperation("load", nil, time.Millisecond)
	m.RecordModelOperation("load", nil, time.Millisecond)
	m.RecordModelOperation("load", errors.New("bad"), time.Millisecond)

	assert.Equal(t, 2.0, value(t, reg, "arxmltool_model_operations_total", "operation", "load", "status", "ok"))
	assert.Equal(t, 1.0, value(t, reg, "arxmltool_model_operations_total", "operation", "load", "status", "error"))
}

func TestUpdateModelStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.UpdateModelStats(2, 150, 12)
	m.RecordParseWarning("unknown-element")
	m.DanglingReferencesTotal.Add(3)

	assert.Equal(t, 2.0, value(t, reg, "arxmltool_files_total"))
	assert.Equal(t, 150.0, value(t, reg, "arxmltool_elements_total"))
	assert.Equal(t, 12.0, value(t, reg, "arxmltool_identifiables_total"))
	assert.Equal(t, 1.0, value(t, reg, "arxmltool_parse_warnings_total", "kind", "unknown-element"))
	assert.Equal(t, 3.0, value(t, reg, "arxmltool_dangling_references_total"))
}

func TestSeparateRegistries(t *testing.T) {
	// registering twice on one registry panics, separate registries do not
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
