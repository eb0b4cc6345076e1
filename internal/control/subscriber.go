package control

import (
	"encoding/base64"
	"encoding/json"
)

// subscriberQueueCapacity is the default number of chunks a
// subscriber's outbound queue holds before the oldest is dropped.
const subscriberQueueCapacity = 64

// subscriber owns one `subscribe` connection's outbound queue. publish
// is only ever called from the grid's single writer goroutine for a
// given subscriber, so dropped needs no synchronization of its own;
// the channel handles producer/consumer safety for the queued lines.
type subscriber struct {
	out     chan []byte
	dropped uint64
}

func newSubscriber() *subscriber {
	return &subscriber{out: make(chan []byte, subscriberQueueCapacity)}
}

// publish encodes data as a chunk frame and enqueues it. When the
// queue is full, the oldest entries are evicted until a dropped-count
// notice and the chunk both fit, and the notice is queued ahead of the
// chunk, so a reader draining the queue always learns about the gap.
func (s *subscriber) publish(data []byte) {
	chunk := encodeChunk(data)
	if s.trySend(chunk) {
		return
	}
	for len(s.out) > cap(s.out)-2 {
		select {
		case <-s.out:
			s.dropped++
		default:
		}
	}
	if s.trySend(encodeDropped(s.dropped)) {
		s.dropped = 0
	}
	if !s.sendEvicting(chunk) {
		s.dropped++
	}
}

// sendEvicting enqueues line, first evicting the oldest queued entry
// if the queue is already full, so overflow always drops the oldest
// data rather than the newest.
func (s *subscriber) sendEvicting(line []byte) bool {
	if s.trySend(line) {
		return true
	}
	select {
	case <-s.out:
		s.dropped++
	default:
	}
	return s.trySend(line)
}

func (s *subscriber) trySend(line []byte) bool {
	select {
	case s.out <- line:
		return true
	default:
		return false
	}
}

func encodeChunk(data []byte) []byte {
	resp := response{Chunk: base64.StdEncoding.EncodeToString(data)}
	return mustEncodeLine(resp)
}

func encodeDropped(n uint64) []byte {
	return mustEncodeLine(response{Dropped: n})
}

func mustEncodeLine(resp response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// response is a flat struct of strings/ints; marshaling it
		// cannot fail.
		panic(err)
	}
	return append(data, '\n')
}
