package filesystem

// Observer records filesystem operation metrics. The metrics package provides
// the Prometheus implementation; this package never imports it.
type Observer interface {
	// ObserveOperation records duration and error status for an operation.
	// volume is the label from the VolumeResolver ("video", "image", "data").
	// operation is "stat", "open" or "readdir".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// defaultObserver is nil until SetObserver runs; recording is skipped then.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
