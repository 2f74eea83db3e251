package metrics

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"TransformsTotal", TransformsTotal},
		{"BackendAttemptsTotal", BackendAttemptsTotal},
		{"JobsTotal", JobsTotal},
		{"QueueDepth", QueueDepth},
		{"HookEventsTotal", HookEventsTotal},
		{"FilesystemOperationDuration", FilesystemOperationDuration},
		{"MemoryPaused", MemoryPaused},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestTransformObserver(t *testing.T) {
	obs := NewTransformObserver()

	before := testutil.ToFloat64(TransformsTotal.WithLabelValues("webp", "thumb", "ok"))
	obs.ObserveTransform("webp", "thumb", "ok", 0.2)
	if got := testutil.ToFloat64(TransformsTotal.WithLabelValues("webp", "thumb", "ok")); got != before+1 {
		t.Errorf("TransformsTotal = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(BackendAttemptsTotal.WithLabelValues("avif", "cli", "unavailable"))
	obs.ObserveBackend("avif", "cli", "unavailable")
	if got := testutil.ToFloat64(BackendAttemptsTotal.WithLabelValues("avif", "cli", "unavailable")); got != before+1 {
		t.Errorf("BackendAttemptsTotal = %v, want %v", got, before+1)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("thumb", "rename"))
	obs.ObserveOperation("thumb", "rename", 0.01, nil)
	obs.ObserveOperation("thumb", "rename", 0.01, errors.New("EXDEV"))
	if got := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("thumb", "rename")); got != before+1 {
		t.Errorf("FilesystemOperationErrors = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat", "public"))
	obs.ObserveStaleError("stat", "public")
	obs.ObserveRetryAttempt("stat", "public")
	obs.ObserveRetrySuccess("stat", "public")
	obs.ObserveRetryFailure("stat", "public")
	obs.ObserveRetryDuration("stat", "public", 0.1)
	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("stat", "public")); got != before+1 {
		t.Errorf("FilesystemStaleErrors = %v, want %v", got, before+1)
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics([]string{"webp", "avif"})

	if n := testutil.CollectAndCount(TransformsTotal); n < 2*2*3 {
		t.Errorf("TransformsTotal has %d series, want at least 12", n)
	}
	if n := testutil.CollectAndCount(QueueDepth); n != 4 {
		t.Errorf("QueueDepth has %d series, want 4", n)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.0.0", "abc123", "go1.25")
	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.0.0", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

type countingProvider struct {
	calls atomic.Int32
	stats Stats
}

func (p *countingProvider) GetStats() Stats {
	p.calls.Add(1)
	return p.stats
}

func TestCollector(t *testing.T) {
	p := &countingProvider{stats: Stats{Pending: 3, Running: 1, Done: 10, Failed: 2}}
	c := NewCollector(p, 10*time.Millisecond)
	c.Start()
	time.Sleep(35 * time.Millisecond)
	c.Stop()

	if p.calls.Load() < 2 {
		t.Errorf("collector ran %d times, want at least 2", p.calls.Load())
	}
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("pending")); got != 3 {
		t.Errorf("pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("failed")); got != 2 {
		t.Errorf("failed = %v, want 2", got)
	}
}

func TestCollectorNilProvider(_ *testing.T) {
	c := NewCollector(nil, time.Millisecond)
	c.collect()
}

func TestStatsProviderFunc(t *testing.T) {
	p := StatsProviderFunc(func() Stats { return Stats{Pending: 7} })
	if p.GetStats().Pending != 7 {
		t.Error("StatsProviderFunc did not return the function's stats")
	}
}
