package notify

import "sync"

// Dispatcher is the outbound notification contract the engine services hold.
// Send never returns an error; delivery failure is a boolean so callers can
// log a degraded outcome without failing their own state transition.
type Dispatcher interface {
	Send(n Notification) bool
}

// QueueDispatcher routes notifications through the Redis-backed queue.
type QueueDispatcher struct {
	queue *Queue
}

func NewQueueDispatcher(q *Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

func (d *QueueDispatcher) Send(n Notification) bool {
	return d.queue.Dispatch(n)
}

var (
	globalQueue *Queue
	queueOnce   sync.Once
)

// GetQueue returns the global notification queue (singleton).
func GetQueue() *Queue {
	queueOnce.Do(func() {
		globalQueue = NewQueue(3)
	})
	return globalQueue
}

// GetDispatcher returns a dispatcher over the global queue.
func GetDispatcher() Dispatcher {
	return NewQueueDispatcher(GetQueue())
}
