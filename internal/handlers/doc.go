// Package handlers provides the HTTP API of the rendition service.
//
// It includes handlers for:
//   - File lifecycle events sent by the upload host (upload, undelete,
//     thumbnail rendered, delete, move, purge thumbnails)
//   - Picture sources for rendering <picture> elements
//   - On-demand transforms, inline or through the job queue
//   - Format and backend availability, queue statistics
//   - Health checks and version information
//
// Errors are returned as {"error": "..."} with 400 for invalid requests,
// 404 for unknown files and 500 otherwise.
package handlers
