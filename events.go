package opqueue

// Queue event names published to the configured Sink.
const (
	EventEnqueued           = "enqueued"
	EventDequeued           = "dequeued"
	EventCleared            = "cleared"
	EventItemRemoved        = "item_removed"
	EventProcessingStart    = "processing_start"
	EventProcessingComplete = "processing_complete"
	EventProcessingError    = "processing_error"
	EventItemSuccess        = "item_success"
	EventItemRetry          = "item_retry"
	EventItemFailed         = "item_failed"
	EventItemRetried        = "item_retried"
	EventNetworkChange      = "network_change"
)

// Event is a named notification with a JSON-friendly payload.
type Event struct {
	Name    string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink receives queue events. Publish is fire-and-forget: the queue never
// inspects a result and a slow sink should not block processing.
type Sink interface {
	// Publish delivers a single event.
	Publish(event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event Event)

// Publish implements Sink.
func (fn SinkFunc) Publish(event Event) {
	fn(event)
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Event) {}
