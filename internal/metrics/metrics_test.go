package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordBeforeInit(t *testing.T) {
	// Record functions must be safe no-ops until Init runs.
	assert.NotPanics(t, func() {
		Rotation(TriggerManual, "success")
		Create("success")
		StoreRetry("read_latest")
		RequestObserved("/apps/:name", "OK", 0.01)
	})
}

func TestInitIsIdempotent(t *testing.T) {
	// A second Init must not re-register with the default registry.
	assert.NotPanics(t, func() {
		Init()
		Init()
	})

	assert.NotPanics(t, func() {
		Rotation(TriggerScheduled, "error")
		Create("error")
		StoreRetry("append_version")
		RequestObserved("/apps", "OK", 0.2)
	})
}
