package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"encoding (1.0x)", 1.0, 0, 1, availableCPU},
		{"transfers (2.0x)", 2.0, 0, 1, availableCPU * 2},
		{"mixed (1.5x)", 1.5, 0, 1, max(1, int(float64(availableCPU)*1.5))},
		{"limit lower than calculated", 2.0, 2, 1, 2},
		{"very low multiplier", 0.1, 0, 1, max(1, int(float64(availableCPU)*0.1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int // 0 means fall back to the calculation
	}{
		{"valid override", "8", 0, 8},
		{"override capped by limit", "20", 10, 10},
		{"override below limit", "5", 10, 5},
		{"non-numeric", "many", 0, 0},
		{"zero", "0", 0, 0},
		{"negative", "-5", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)

			got := Count(1.0, tt.limit)
			if tt.expected == 0 {
				if want := runtime.GOMAXPROCS(0); got != want {
					t.Errorf("Count with %s=%q = %d, want calculated %d", EnvOverride, tt.envValue, got, want)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d",
					tt.limit, EnvOverride, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvOverride, "7")

	if got := Resolve(3, 0); got != 3 {
		t.Errorf("Resolve(3, 0) = %d, want configured 3", got)
	}
	if got := Resolve(12, 4); got != 4 {
		t.Errorf("Resolve(12, 4) = %d, want limit 4", got)
	}
	if got := Resolve(0, 0); got != 7 {
		t.Errorf("Resolve(0, 0) = %d, want env override 7", got)
	}
}

func TestForCPU(t *testing.T) {
	t.Setenv(EnvOverride, "")

	if got := ForCPU(0); got < 1 || got > runtime.GOMAXPROCS(0) {
		t.Errorf("ForCPU(0) = %d, want between 1 and %d", got, runtime.GOMAXPROCS(0))
	}
	if got := ForCPU(4); got < 1 || got > 4 {
		t.Errorf("ForCPU(4) = %d, want between 1 and 4", got)
	}
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
}

func TestForIOAndMixed(t *testing.T) {
	t.Setenv(EnvOverride, "")

	cpu := runtime.GOMAXPROCS(0)
	if got := ForIO(0); got != cpu*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, cpu*2)
	}
	if got := ForIO(8); got > 8 {
		t.Errorf("ForIO(8) = %d, should not exceed limit", got)
	}
	if got := ForMixed(0); got != max(1, int(float64(cpu)*1.5)) {
		t.Errorf("ForMixed(0) = %d, want 1.5x %d", got, cpu)
	}
}

func TestCountBoundaries(t *testing.T) {
	t.Setenv(EnvOverride, "")

	tests := []struct {
		name       string
		multiplier float64
		limit      int
	}{
		{"zero multiplier", 0.0, 0},
		{"negative multiplier", -1.0, 0},
		{"very high multiplier", 100.0, 0},
		{"very high limit", 1.0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, should never be less than 1", tt.multiplier, tt.limit, got)
			}
			if tt.limit > 0 && got > tt.limit {
				t.Errorf("Count(%v, %d) = %d, should not exceed limit", tt.multiplier, tt.limit, got)
			}
		})
	}
}

func BenchmarkCount(b *testing.B) {
	b.Run("no override", func(b *testing.B) {
		b.Setenv(EnvOverride, "")
		for i := 0; i < b.N; i++ {
			_ = Count(1.5, 10)
		}
	})

	b.Run("with override", func(b *testing.B) {
		b.Setenv(EnvOverride, "8")
		for i := 0; i < b.N; i++ {
			_ = Count(1.5, 10)
		}
	})
}
