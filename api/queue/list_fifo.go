package queue

import (
	"container/list"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// ListFIFOQueue is an in-memory FIFO backed by a doubly linked list.
// Queued requests do not survive a restart; the persisted variant covers
// that case.
type ListFIFOQueue struct {
	queue  *list.List
	hashes map[int]bool
	size   int
	closed bool
	mutex  *sync.RWMutex
	cond   *sync.Cond
}

// NewListFIFOQueue creates an in-memory queue holding at most `size`
// requests.
func NewListFIFOQueue(size int) RequestQueue {
	mutex := &sync.RWMutex{}
	return &ListFIFOQueue{
		queue:  list.New(),
		hashes: map[int]bool{},
		size:   size,
		mutex:  mutex,
		cond:   sync.NewCond(mutex),
	}
}

// Enqueue adds a new request to the queue.  Returns false without error when
// the queue is full.
func (r *ListFIFOQueue) Enqueue(x interface{}) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return false, errors.New("no enqueue after close")
	}

	if r.queue.Len() < r.size {
		r.queue.PushBack(&queuedItem{Value: x})
		r.cond.Signal()
		return true, nil
	}
	return false, nil
}

// EnqueueHashed adds a new request unless one with the same key is already
// queued.  A duplicate is not added but still reports true, since the work
// it represents is queued.
func (r *ListFIFOQueue) EnqueueHashed(key int, x interface{}) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return false, errors.New("no enqueue after close")
	}

	if r.hashes[key] {
		return true, nil
	}
	if r.queue.Len() < r.size {
		r.queue.PushBack(&queuedItem{Value: x, Key: key})
		r.hashes[key] = true
		r.cond.Signal()
		return true, nil
	}
	return false, nil
}

// Dequeue removes the oldest request.  Blocks while the queue is empty.
func (r *ListFIFOQueue) Dequeue() (interface{}, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil, errors.New("no dequeue after close")
	}

	for r.queue.Len() == 0 {
		r.cond.Wait()
	}

	front := r.queue.Front()
	item := front.Value.(*queuedItem)
	r.queue.Remove(front)
	delete(r.hashes, item.Key)

	return item.Value, nil
}

// Size returns the current number of queued requests.
func (r *ListFIFOQueue) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.queue.Len()
}

// Clear drops every queued request and the idempotency key set.
func (r *ListFIFOQueue) Clear() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return errors.New("no queue clear after close")
	}

	r.queue.Init()
	r.hashes = map[int]bool{}
	return nil
}

// Close forbids further queue operations.
func (r *ListFIFOQueue) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return errors.New("no close of previously closed queue")
	}
	r.closed = true
	return nil
}

// GetAll returns the queued requests in order without removing them.
func (r *ListFIFOQueue) GetAll() ([]interface{}, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	contents := make([]interface{}, 0, r.queue.Len())
	for current := r.queue.Front(); current != nil; current = current.Next() {
		item, ok := current.Value.(*queuedItem)
		if !ok {
			return nil, errors.Errorf("unexpected type %s", reflect.TypeOf(current.Value))
		}
		contents = append(contents, item.Value)
	}
	return contents, nil
}
