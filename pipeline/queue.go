package pipeline

import "github.com/CESNET/ipfixcol-sub004/obs"

// Queue is the bounded, blocking inter-stage channel of spec.md §5:
// "Suspension points. Exactly at queue operations." Each stage owns exactly
// one inbound Queue; pushing past capacity blocks the sender, matching the
// teacher's fixed-size ring buffer's backpressure behavior.
type Queue struct {
	stage string
	ch    chan *Message
}

// NewQueue creates a Queue labeled stage (used for the pipeline_queue_depth
// gauge) with room for capacity in-flight messages.
func NewQueue(stage string, capacity int) *Queue {
	return &Queue{stage: stage, ch: make(chan *Message, capacity)}
}

// Push enqueues msg, blocking if the queue is full, and updates the depth
// gauge.
func (q *Queue) Push(msg *Message) {
	q.ch <- msg
	obs.PipelineQueueDepth.WithLabelValues(q.stage).Set(float64(len(q.ch)))
}

// Pop dequeues the next message, blocking until one is available.
func (q *Queue) Pop() *Message {
	msg := <-q.ch
	obs.PipelineQueueDepth.WithLabelValues(q.stage).Set(float64(len(q.ch)))
	return msg
}

// Depth returns the number of messages currently queued.
func (q *Queue) Depth() int {
	return len(q.ch)
}
