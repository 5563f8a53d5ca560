package crawler

// Event reports crawl progress to whatever presentation layer is attached.
// Components never talk to a UI directly; the session publishes events and
// callers decide what to do with them.
type Event struct {
	Message string
	URL     string
	Current int
	Total   int
}

// Sink receives progress events. Publish must not block for long; it is
// called from the crawl loop.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(e Event) {
	f(e)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
