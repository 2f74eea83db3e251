/*
Package watch notices uploads written straight into a local public zone.

Files that land at their hashed location (for example e/e1/Bar.png) are
reported to an UploadHandler once they have been quiet for a settle period,
so a copy still in progress is not picked up half written. New directories
are added to the watch as they appear.
*/
package watch
