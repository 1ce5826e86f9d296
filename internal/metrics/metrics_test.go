package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, "")

	r.SetSnapshotSize(3)
	r.AccessDenied()
	r.AccessDenied()
	r.TermsGenerated("hinge", 4)
	r.TermsGenerated("constraint", 1)
	r.TermsGenerated("hinge", 0)
	r.WeightsUpdated(2)
	r.StaleTermReference()

	assert.Equal(t, 3.0, testutil.ToFloat64(r.snapshotAtoms))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.accessDenied))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.termsGenerated.WithLabelValues("hinge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.termsGenerated.WithLabelValues("constraint")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.weightUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleTerms))

	n, err := testutil.GatherAndCount(reg, "psl_snapshot_atoms", "psl_atom_access_denied_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.SetSnapshotSize(1)
	r.AccessDenied()
	r.TermsGenerated("hinge", 1)
	r.WeightsUpdated(1)
	r.StaleTermReference()
}
