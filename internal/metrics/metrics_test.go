package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordCreated("youtube", "aspect-ratio")
	m.RecordCreated("youtube", "aspect-ratio")
	m.RecordAutoload("vimeo")
	m.RecordActivated("youtube")
	m.RecordDeferred("hidden")
	m.RecordRollback()
	m.SetPending(3)
	m.RecordSkip("excluded")
	m.RecordError()
	m.ObserveBatch(4)
	m.RecordConsentWrite(true, true)
	m.RecordConsentWrite(true, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatesCreated.WithLabelValues("youtube", "aspect-ratio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatesAutoloaded.WithLabelValues("vimeo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatesActivated.WithLabelValues("youtube")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsDeferred.WithLabelValues("hidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatesRolledBack))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GatesPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped.WithLabelValues("excluded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ElementErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsentWrites.WithLabelValues("true", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchSize))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCreated("generic", "default-16x9")
		m.RecordAutoload("generic")
		m.RecordActivated("generic")
		m.RecordDeferred("printing")
		m.RecordRollback()
		m.SetPending(1)
		m.RecordSkip("excluded")
		m.RecordError()
		m.ObserveBatch(1)
		m.RecordConsentWrite(false, true)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordCreated("youtube", "aspect-ratio")

	path := filepath.Join(t.TempDir(), "embed_consent.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `embed_consent_gates_created_total{mode="aspect-ratio",provider="youtube"} 1`)
}
