package trial

import "context"

// Engine launches isolated browsing sessions. The chromedp implementation
// lives in the browser package; tests substitute a mock.
type Engine interface {
	// NewSession returns a fresh browsing context that shares no cookies,
	// cache or storage with any other session. The session has its network
	// cache disabled before it is handed out.
	NewSession(ctx context.Context) (Session, error)
}

// Session is the capability boundary to one page. The host process never
// touches the DOM directly; it sends scripts across and receives serializable
// snapshots back.
type Session interface {
	// Navigate loads url and returns once DOMContentLoaded fires. Full
	// load is deliberately not awaited; image completion is tracked by the
	// poll loop instead.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs script in the page and unmarshals its serialized
	// result into out. Promises are awaited. out may be nil when the
	// result is irrelevant.
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Close tears the browsing context down. It must be called on every
	// exit path.
	Close() error
}
