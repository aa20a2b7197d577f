package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGenerationCountsByProviderAndOutcome(t *testing.T) {
	before := testutil.ToFloat64(generationRequestsTotal.WithLabelValues("gemini", OutcomeError))
	ObserveGeneration("gemini", 20*time.Millisecond, errors.New("boom"))
	after := testutil.ToFloat64(generationRequestsTotal.WithLabelValues("gemini", OutcomeError))
	if after-before != 1 {
		t.Fatalf("error counter delta = %v", after-before)
	}
}

func TestObserveQueryExecutionAndSchemaBuild(t *testing.T) {
	before := testutil.ToFloat64(queryExecutionsTotal.WithLabelValues(OutcomeSuccess))
	ObserveQueryExecution(3, time.Millisecond, nil)
	if delta := testutil.ToFloat64(queryExecutionsTotal.WithLabelValues(OutcomeSuccess)) - before; delta != 1 {
		t.Fatalf("query success delta = %v", delta)
	}

	before = testutil.ToFloat64(schemaBuildsTotal.WithLabelValues(OutcomeError))
	ObserveSchemaBuild(errors.New("denied"))
	if delta := testutil.ToFloat64(schemaBuildsTotal.WithLabelValues(OutcomeError)) - before; delta != 1 {
		t.Fatalf("schema error delta = %v", delta)
	}
}

func TestSetActiveSessionsClampsNegative(t *testing.T) {
	SetActiveSessions(-4)
	if got := testutil.ToFloat64(activeSessions); got != 0 {
		t.Fatalf("active sessions = %v", got)
	}
	SetActiveSessions(2)
	if got := testutil.ToFloat64(activeSessions); got != 2 {
		t.Fatalf("active sessions = %v", got)
	}
}
