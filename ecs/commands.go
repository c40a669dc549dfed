package ecs

// destroyQueue buffers entity destruction requests in FIFO order until the
// end-of-tick sweep.
type destroyQueue struct {
	entities []Entity
}

func newDestroyQueue(capacity int) *destroyQueue {
	return &destroyQueue{
		entities: make([]Entity, 0, capacity),
	}
}

func (q *destroyQueue) push(e Entity) {
	q.entities = append(q.entities, e)
}

func (q *destroyQueue) len() int {
	return len(q.entities)
}

// flush calls fn for every queued entity in request order and resets the
// buffer.
func (q *destroyQueue) flush(fn func(Entity)) int {
	n := len(q.entities)
	for _, e := range q.entities {
		fn(e)
	}
	clear(q.entities)
	q.entities = q.entities[:0]
	return n
}
