package queue

// RequestQueue is the FIFO of pending grading requests waiting for the
// runner.  EnqueueHashed supports idempotency: a request whose key is
// already queued is dropped rather than queued twice.
type RequestQueue interface {
	Enqueue(x interface{}) (bool, error)
	EnqueueHashed(key int, x interface{}) (bool, error)
	Dequeue() (interface{}, error)
	Clear() error
	Close() error
	Size() int
	GetAll() ([]interface{}, error)
}

// queuedItem wraps a queued request with its idempotency key.  Exported
// fields keep it serializable by the persisted queue's gob encoding.
type queuedItem struct {
	Key   int
	Value interface{}
}
