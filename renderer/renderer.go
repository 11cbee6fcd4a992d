package renderer

type Renderer interface {
	// Render until the renderer decides to stop.
	Render() error

	// Shutdown renderer and release all device resources.
	Close()

	// Get render statistics.
	Stats() SessionStats
}
