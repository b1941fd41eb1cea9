package api

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/navaids/internal/monitoring"
)

func counterValue(t *testing.T, m *monitoring.Metrics, route, status string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.APIRequests.WithLabelValues(route, status).Write(&out))
	return out.GetCounter().GetValue()
}
