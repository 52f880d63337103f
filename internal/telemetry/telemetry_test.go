package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{ServiceName: "mailroster", SampleRatio: 0.25}},
		{name: "missing name", cfg: Config{SampleRatio: 1}, wantErr: true},
		{name: "ratio above one", cfg: Config{ServiceName: "mailroster", SampleRatio: 1.5}, wantErr: true},
		{name: "negative ratio", cfg: Config{ServiceName: "mailroster", SampleRatio: -0.1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSampler(t *testing.T) {
	s := Config{ServiceName: "mailroster", SampleRatio: 0.5}.Sampler()
	require.Contains(t, s.Description(), "TraceIDRatioBased{0.5}")
}

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m.OperationsTotal)
	require.NotNil(t, m.OperationDuration)
	require.NotNil(t, m.ConflictsTotal)
	require.NotNil(t, m.EventsAppendedTotal)
	require.Same(t, m, GetMetrics())
}
