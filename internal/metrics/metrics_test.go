package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	MalformedPayloads.Inc()
	if got := testutil.ToFloat64(MalformedPayloads); got < 1 {
		t.Errorf("expected counter to move, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("expected registered families")
	}
}
