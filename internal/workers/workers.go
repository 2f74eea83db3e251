package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "WEBP_WORKERS"

// Count returns a worker count sized to the CPUs available to the process.
// GOMAXPROCS follows the container CPU limit, unlike runtime.NumCPU.
//
// multiplier scales the CPU count: 1.0 for encoding, 2.0 for repository I/O.
// limit caps the result; 0 means no cap. A positive WEBP_WORKERS value wins
// over the calculation but is still capped.
func Count(multiplier float64, limit int) int {
	if n, ok := fromEnv(); ok {
		return capAt(n, limit)
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

// Resolve returns configured when it is positive and otherwise falls back
// to ForCPU. Configured values also bypass the environment override.
func Resolve(configured, limit int) int {
	if configured > 0 {
		return capAt(configured, limit)
	}
	return ForCPU(limit)
}

// ForCPU returns the worker count for encoding work (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for repository transfers (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns the worker count for jobs that both transfer and encode
// (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

func fromEnv() (int, bool) {
	v := os.Getenv(EnvOverride)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
