// Package filerepo is the content repository port used by the rendition
// pipeline, plus adapters for a local (NFS friendly) filesystem, S3, Google
// Cloud Storage and SFTP.
//
// Paths are slash separated and relative to a zone. The "public" zone holds
// originals under hashed directories ("a/ab/Foo.jpg") and full size
// renditions under a per-format directory ("webp/a/ab/Foo.webp"). The
// "thumb" zone holds thumbnails and thumbnail renditions.
//
// Store never replaces an existing object unless asked to; collisions are
// reported as ErrAlreadyExists so that concurrent writers of the same
// rendition both succeed.
package filerepo
