// Package batch implements the maintenance commands of webpctl: bulk
// conversion of existing uploads, removal of generated renditions and a
// backend probe.
package batch
