/*
Package filesystem wraps os.Stat, os.Open and os.ReadDir with retry logic for
NFS stale file handle errors.

Library roots often live on network mounts. A stale handle (ESTALE) during a
reconciliation scan or a missing-file check must not be mistaken for a
deleted file, so those callers go through this package:

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	present, err := filesystem.Exists(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    // volume unreachable, not a missing file
	}

Only ESTALE triggers a retry. Backoff starts at 50ms and doubles up to 500ms
for at most three retries.

Metrics are reported through an Observer registered with SetObserver, labelled
by the volume a VolumeResolver assigns to the path.
*/
package filesystem
