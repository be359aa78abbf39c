package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListEnqueueDequeue(t *testing.T) {
	queue := NewListFIFOQueue(2)

	result, err := queue.Enqueue(10)
	assert.NoError(t, err)
	assert.True(t, result)
	result, err = queue.Enqueue(20)
	assert.NoError(t, err)
	assert.True(t, result)

	// full queue rejects rather than blocks
	result, err = queue.Enqueue(30)
	assert.NoError(t, err)
	assert.False(t, result)

	assert.Equal(t, 2, queue.Size())

	dequeueResult, err := queue.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 10, dequeueResult.(int))

	assert.Equal(t, 1, queue.Size())

	dequeueResult, err = queue.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 20, dequeueResult.(int))

	assert.Equal(t, 0, queue.Size())
}

func TestListBlockingDequeue(t *testing.T) {
	queue := NewListFIFOQueue(2)

	// setup a dequeue in a different go routine
	done := make(chan bool)
	var dequeueResult interface{}
	go func() {
		dequeueResult, _ = queue.Dequeue()
		done <- true
	}()

	// force a bit of a wait to ensure that the dequeue is blocked, then
	// enqueue
	time.Sleep(500 * time.Millisecond)
	_, _ = queue.Enqueue(30)

	// wait until the dequeue is done
	<-done

	assert.Equal(t, 30, dequeueResult.(int))
	assert.Equal(t, 0, queue.Size())
}

func TestListHashedEnqueueDequeue(t *testing.T) {
	queue := NewListFIFOQueue(2)

	// ensure requests with identical keys are only added once
	result, err := queue.EnqueueHashed(1, 10)
	assert.NoError(t, err)
	assert.True(t, result)
	result, err = queue.EnqueueHashed(1, 10)
	assert.NoError(t, err)
	assert.True(t, result)
	assert.Equal(t, 1, queue.Size())
	result, err = queue.EnqueueHashed(2, 20)
	assert.NoError(t, err)
	assert.True(t, result)

	// ensure that dequeuing a request allows a follow on request with the
	// same key to be added
	dequeueResult, err := queue.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 10, dequeueResult.(int))
	dequeueResult, err = queue.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 20, dequeueResult.(int))

	assert.Equal(t, 0, queue.Size())

	result, err = queue.EnqueueHashed(1, 10)
	assert.NoError(t, err)
	assert.True(t, result)

	assert.Equal(t, 1, queue.Size())
}

func TestListGetAll(t *testing.T) {
	queue := NewListFIFOQueue(3)
	_, _ = queue.Enqueue(10)
	_, _ = queue.Enqueue(20)
	_, _ = queue.Enqueue(30)

	contents, err := queue.GetAll()
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{10, 20, 30}, contents)

	// a peek does not consume
	assert.Equal(t, 3, queue.Size())
}

func TestListClear(t *testing.T) {
	queue := NewListFIFOQueue(2)
	_, _ = queue.Enqueue(10)
	_, _ = queue.Enqueue(20)

	err := queue.Clear()
	assert.NoError(t, err)
	assert.Equal(t, 0, queue.Size())

	// cleared hash keys accept re-enqueues
	result, err := queue.EnqueueHashed(1, 10)
	assert.NoError(t, err)
	assert.True(t, result)
}

func TestListClose(t *testing.T) {
	queue := NewListFIFOQueue(2)
	_, _ = queue.Enqueue(10)

	err := queue.Close()
	assert.NoError(t, err)

	err = queue.Close()
	assert.Error(t, err)

	err = queue.Clear()
	assert.Error(t, err)

	_, err = queue.Enqueue(10)
	assert.Error(t, err)

	_, err = queue.EnqueueHashed(10, 100)
	assert.Error(t, err)

	_, err = queue.Dequeue()
	assert.Error(t, err)
}
