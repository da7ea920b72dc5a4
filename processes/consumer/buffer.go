package consumer

import (
	"sync"

	"github.com/banquet-labs/banquet/lib/kafkalib"
)

type sourceBuffer struct {
	rows []map[string]any
	// Last message seen per partition, committed once the rows are pushed.
	lastMessages map[int32]kafkalib.Message
}

func (s *sourceBuffer) messages() []kafkalib.Message {
	out := make([]kafkalib.Message, 0, len(s.lastMessages))
	for _, msg := range s.lastMessages {
		out = append(out, msg)
	}

	return out
}

// rowBuffer accumulates decoded rows per push source until the next flush.
type rowBuffer struct {
	sync.Mutex
	data map[string]*sourceBuffer
	size uint
}

func newRowBuffer() *rowBuffer {
	return &rowBuffer{data: make(map[string]*sourceBuffer)}
}

func (r *rowBuffer) Add(msg kafkalib.Message, row map[string]any) {
	r.Lock()
	defer r.Unlock()

	entry, found := r.data[msg.Topic]
	if !found {
		entry = &sourceBuffer{lastMessages: make(map[int32]kafkalib.Message)}
		r.data[msg.Topic] = entry
	}

	if row != nil {
		entry.rows = append(entry.rows, row)
		r.size++
	}

	entry.lastMessages[msg.Partition] = msg
}

func (r *rowBuffer) Size() uint {
	r.Lock()
	defer r.Unlock()
	return r.size
}
