package broker

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker releases commits in offset order per partition. A message becomes
// committable only when it and every earlier fetched message of its partition are acked.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []kafka.Message
	acked   map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

func (t *offsetTracker) fetched(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.partitions[msg.Partition]
	if !ok {
		p = &partitionOffsets{acked: make(map[int64]bool)}
		t.partitions[msg.Partition] = p
	}
	p.pending = append(p.pending, msg)
}

// acked marks msg as done and returns the highest message that can now be committed.
func (t *offsetTracker) acked(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.partitions[msg.Partition]
	if !ok {
		return kafka.Message{}, false
	}
	p.acked[msg.Offset] = true

	var commit kafka.Message
	released := false
	for len(p.pending) > 0 && p.acked[p.pending[0].Offset] {
		commit = p.pending[0]
		delete(p.acked, commit.Offset)
		p.pending = p.pending[1:]
		released = true
	}
	return commit, released
}
