// Package storage maps image records to files and writes them safely.
//
// TargetPath derives <dir>/<id><ext> from an id and an image URL, taking the
// extension from the URL path when it is short enough and defaulting to
// .png otherwise.
//
// Manager writes each download to a uniquely named .part file in the output
// directory. Commit publishes it at the target path with a hard link, so an
// existing file is never overwritten, and Abort drops it. A failed or
// interrupted download therefore never leaves a truncated file at the
// target path.
package storage
