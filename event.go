package taskguard

// EventType names a cache lifecycle event.
type EventType string

const (
	EventExpired            EventType = "expired"
	EventInvalidated        EventType = "invalidated"
	EventRevalidated        EventType = "revalidated"
	EventRevalidationFailed EventType = "revalidation:failed"
	EventRemoved            EventType = "removed"
	EventCleared            EventType = "cleared"
	EventClearedExpired     EventType = "cleared:expired"
	EventOptimisticUpdate   EventType = "optimistic:update"
	EventOptimisticRollback EventType = "optimistic:rollback"
	EventOptimisticDelete   EventType = "optimistic:delete"
)

// Event is delivered to listeners. Key is empty for whole-tier events such as
// EventCleared and EventClearedExpired.
type Event struct {
	Type EventType
	Key  string
	Tier string
}

// Listener receives events. It is called synchronously by the emitter.
type Listener func(Event)
