package control

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestPublishDeliversChunk(t *testing.T) {
	sub := newSubscriber()
	sub.publish([]byte("hello"))

	line := <-sub.out
	var resp response
	if err := json.Unmarshal(line[:len(line)-1], &resp); err != nil {
		t.Fatal(err)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Chunk)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != "hello" {
		t.Fatalf("got %q, want %q", decoded, "hello")
	}
}

func TestPublishOverflowDropsOldestAndNotifies(t *testing.T) {
	sub := newSubscriber()

	// Fill the queue without draining it.
	for i := 0; i < subscriberQueueCapacity; i++ {
		sub.publish([]byte{byte(i)})
	}
	// This push must evict the oldest queued chunk and record a drop.
	sub.publish([]byte("overflow"))

	// Drain until we find the dropped-notice frame; it must appear
	// before the stream resumes with real chunks.
	sawDropped := false
	for i := 0; i < subscriberQueueCapacity; i++ {
		line := <-sub.out
		var resp response
		if err := json.Unmarshal(line[:len(line)-1], &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Dropped > 0 {
			sawDropped = true
			break
		}
	}
	if !sawDropped {
		t.Fatal("expected a dropped-count frame somewhere in the queue after overflow")
	}
}
