// Package jobs holds the queue job types of the rendition service.
//
// A transformImage job names a format key, a file title and an optional
// thumbnail width. Its handler looks the file up in the repository, builds
// a transformer and runs it. Handlers also back the synchronous
// POST /api/transform endpoint and inline batch conversion through
// [TransformImage.Execute].
package jobs
