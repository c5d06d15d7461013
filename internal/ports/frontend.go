package ports

// Frontend is a long-running inbound surface of the daemon such as the HTTP
// API, the SMTP intake listener or the batch scheduler
type Frontend interface {
	// Name identifies the frontend in logs
	Name() string

	// Start starts serving; it returns once the frontend is listening
	Start() error

	// Stop stops the frontend and releases its resources
	Stop() error
}
