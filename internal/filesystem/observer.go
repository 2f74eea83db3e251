package filesystem

// Observer receives the outcome of every retried filesystem call. The
// metrics package implements it; filesystem cannot import metrics.
//
// volume is the label a VolumeResolver gives the path: a repository zone
// ("public", "thumb"), "queue", "temp" or "unknown". op is one of "stat",
// "open", "readdir" or "rename".
type Observer interface {
	ObserveOperation(volume, op string, durationSeconds float64, err error)

	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)             {}
func (nopObserver) ObserveRetrySuccess(string, string)             {}
func (nopObserver) ObserveRetryFailure(string, string)             {}
func (nopObserver) ObserveRetryDuration(string, string, float64)   {}
func (nopObserver) ObserveStaleError(string, string)               {}

// defaultObserver receives calls from the retry helpers. Nil records nothing.
var defaultObserver Observer

// SetObserver installs o for all retry helpers. Passing nil turns
// recording off.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
