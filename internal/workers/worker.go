package workers

// Worker is a background job owned by the Manager.
type Worker interface {
	// Start must not block.
	Start() error
	// Stop blocks until the worker has exited.
	Stop()
	Name() string
}
