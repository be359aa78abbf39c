package queue

import (
	"os"
	"path"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/uncharted-causemos/dque"
)

const queueSegmentSize = 50

// PersistedFIFOQueue is a FIFO of grading requests backed by an on-disk
// dque, so queued runs survive a service restart.
type PersistedFIFOQueue struct {
	queue  *dque.DQue
	size   int
	hashes map[int]bool
	mutex  *sync.RWMutex
}

func queuedItemBuilder() interface{} {
	return &queuedItem{}
}

// keyMapBuilder collects the idempotency keys of requests deserialized from
// the persisted queue on startup.
type keyMapBuilder struct {
	KeyMap map[int]bool
}

// Apply is called for each persisted item when the queue is loaded from
// disk, rebuilding the in-memory idempotency key set.
func (k *keyMapBuilder) Apply(entry interface{}) error {
	item, ok := entry.(*queuedItem)
	if !ok {
		return errors.Errorf("unexpected type %s", reflect.TypeOf(entry))
	}
	k.KeyMap[item.Key] = true
	return nil
}

// NewPersistedFIFOQueue opens (or creates) the on-disk queue at
// queueDir/queueName, holding at most `size` requests.
func NewPersistedFIFOQueue(size int, queueDir string, queueName string) (RequestQueue, error) {
	queuePath := path.Join(queueDir, queueName)

	var persisted *dque.DQue
	if _, err := os.Stat(queuePath); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to stat queue dir %s", queuePath)
		}
		if err := os.MkdirAll(queueDir, os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create grading queue dir %s", queueDir)
		}
		persisted, err = dque.New(queueName, queueDir, queueSegmentSize, queuedItemBuilder)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to initialize grading queue %s/%s", queueDir, queueName)
		}
	} else {
		persisted, err = dque.Open(queueName, queueDir, queueSegmentSize, queuedItemBuilder)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load grading queue %s/%s", queueDir, queueName)
		}
	}

	builder := keyMapBuilder{KeyMap: map[int]bool{}}
	if err := persisted.ApplyToQueue(&builder); err != nil {
		return nil, errors.Wrapf(err, "failed to rebuild key set for %s/%s", queueDir, queueName)
	}

	return &PersistedFIFOQueue{
		queue:  persisted,
		size:   size,
		hashes: builder.KeyMap,
		mutex:  &sync.RWMutex{},
	}, nil
}

// Enqueue adds a new request to the queue.  Returns false without error when
// the queue is full.
func (r *PersistedFIFOQueue) Enqueue(x interface{}) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.queue.Size() < r.size {
		if err := r.queue.Enqueue(&queuedItem{Value: x}); err != nil {
			return false, errors.Wrap(err, "failed to enqueue")
		}
		return true, nil
	}
	return false, nil
}

// EnqueueHashed adds a new request unless one with the same key is already
// queued.  A duplicate is not added but still reports true.
func (r *PersistedFIFOQueue) EnqueueHashed(key int, x interface{}) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.hashes[key] {
		return true, nil
	}
	if r.queue.Size() < r.size {
		if err := r.queue.Enqueue(&queuedItem{Value: x, Key: key}); err != nil {
			return false, errors.Wrap(err, "failed to enqueue with hash key")
		}
		r.hashes[key] = true
		return true, nil
	}
	return false, nil
}

// Dequeue removes the oldest request.  Blocks while the queue is empty.
func (r *PersistedFIFOQueue) Dequeue() (interface{}, error) {
	result, err := r.queue.DequeueBlock()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err != nil {
		return nil, errors.Wrap(err, "failed to dequeue")
	}

	item := result.(*queuedItem)
	delete(r.hashes, item.Key)
	return item.Value, nil
}

// Size returns the current number of queued requests.
func (r *PersistedFIFOQueue) Size() int {
	return r.queue.Size()
}

// Clear drains the queue.  The underlying dque has no clear operation, so
// items are dequeued one at a time.
func (r *PersistedFIFOQueue) Clear() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.hashes = map[int]bool{}

	count := r.queue.Size()
	for i := 0; i < count; i++ {
		if _, err := r.queue.Dequeue(); err != nil {
			return errors.Wrap(err, "failed to clear queue")
		}
	}
	return nil
}

// Close flushes state to disk and disallows further operations.
func (r *PersistedFIFOQueue) Close() error {
	return errors.Wrap(r.queue.Close(), "failed to close queue")
}

// GetAll returns the queued requests in order without removing them.
func (r *PersistedFIFOQueue) GetAll() ([]interface{}, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	contents := make([]interface{}, 0, r.queue.Size())
	collect := func(entry interface{}) error {
		item, ok := entry.(*queuedItem)
		if !ok {
			return errors.Errorf("unexpected type %s", reflect.TypeOf(entry))
		}
		contents = append(contents, item.Value)
		return nil
	}
	if err := r.queue.ApplyToQueue(applyFunc(collect)); err != nil {
		return nil, errors.Wrap(err, "failed to read queue contents")
	}
	return contents, nil
}

// applyFunc adapts a closure to dque's queue-visitor interface.
type applyFunc func(interface{}) error

// Apply invokes the wrapped closure.
func (f applyFunc) Apply(entry interface{}) error { return f(entry) }
