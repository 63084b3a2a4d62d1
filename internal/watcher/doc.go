// Package watcher reports media files of one library type under a set of
// root directories.
//
// A Watcher first enumerates every existing file (the initial scan), then
// signals completion once, then reports files as they appear. New files
// are held until writes stop for the settle delay so half-copied files are
// not imported. Polling mode replaces OS notifications with a periodic
// walk for filesystems that do not deliver them, such as NFS and SMB
// mounts.
package watcher
