// Package encoder implements the transcoding backends that turn a source
// raster image into a WebP or AVIF rendition.
//
// # Backends
//
// Three strategies share the Backend interface and are tried in this order:
//
//   - CLI: runs cwebp or avifenc as a subprocess. Fast and produces the
//     reference encoder output. avifenc cannot resize, so resized AVIF
//     requests fall through.
//   - Vips: libvips through govips. Converts to sRGB, strips metadata while
//     keeping the ICC profile, resizes with a cubic kernel.
//   - Software: Go decoders via imaging, bilinear resampling from
//     golang.org/x/image/draw, then go-webp or the AVIF encoder.
//
// A backend returns false with a nil error when it cannot serve a request in
// the current environment. Availability is evaluated on every call so a
// binary installed while the service runs is picked up.
//
// # Resizing
//
// Callers only choose the width. ResizeHeight derives the height from the
// source aspect ratio, rounding to the nearest pixel. A width of zero or less
// keeps the original dimensions.
//
// # libvips lifecycle
//
// InitVips must be called once before the Vips backend reports itself
// available, and ShutdownVips once on exit. govips cannot restart libvips in
// the same process.
package encoder
