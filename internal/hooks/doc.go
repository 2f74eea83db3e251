// Package hooks maps file lifecycle events onto renditions.
//
// Uploads, undeletes and freshly rendered thumbnails queue transformImage
// jobs. Deletes purge the renditions of the file, renames move them along
// with the file, and thumbnail purges drop the thumbnail renditions.
// PictureSources lists the renditions a page can offer for an image and
// queues the ones that are missing.
//
// Hooks only touch rendition paths. Originals and the stock thumbnails of
// the file store are managed elsewhere.
package hooks
