package transform

import "webp-renditions/internal/filerepo"

// BackendStatus is the availability of one backend for one format.
type BackendStatus struct {
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
}

// Prober answers capability questions. Backends are asked on every call, so
// a binary installed after startup is picked up without a restart.
type Prober struct{}

// IsFormatSupported reports whether any backend of f can encode it.
func (Prober) IsFormatSupported(f *Format) bool {
	for _, b := range f.Backends {
		if b.Available(f.Codec) {
			return true
		}
	}
	return false
}

// CanTransform reports whether src has an accepted MIME type and f has a
// usable backend. Callers use it to avoid queueing work that cannot succeed.
func (p Prober) CanTransform(f *Format, src filerepo.File) bool {
	return f.Supports(src.MimeType) && p.IsFormatSupported(f)
}

// Report lists every backend of f with its current availability.
func (Prober) Report(f *Format) []BackendStatus {
	out := make([]BackendStatus, 0, len(f.Backends))
	for _, b := range f.Backends {
		out = append(out, BackendStatus{Backend: b.Name(), Available: b.Available(f.Codec)})
	}
	return out
}
