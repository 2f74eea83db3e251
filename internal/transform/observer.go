package transform

// Observer receives transform metrics. The metrics package provides the
// Prometheus implementation.
type Observer interface {
	// ObserveTransform records one Transform or TransformLikeThumb call.
	// kind is "full" or "thumb"; outcome is a Result outcome.
	ObserveTransform(format, kind, outcome string, durationSeconds float64)
	// ObserveBackend records one backend attempt; outcome is "success",
	// "unavailable" or "error".
	ObserveBackend(format, backend, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveTransform(string, string, string, float64) {}
func (nopObserver) ObserveBackend(string, string, string)            {}
