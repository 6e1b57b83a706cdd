package service

import (
	"sync"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/logger"
)

// TailBroker fans accepted records out to live subscribers (the
// websocket tail endpoint). Delivery is best effort: a subscriber that
// cannot keep up has records dropped rather than stalling ingestion.
type TailBroker struct {
	mu      sync.RWMutex
	subs    map[int]*tailSub
	nextID  int
	bufSize int
}

type tailSub struct {
	ch     chan *model.LogRecord
	fileID string // "" = all files
}

func NewTailBroker(bufSize int) *TailBroker {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &TailBroker{subs: make(map[int]*tailSub), bufSize: bufSize}
}

// Subscribe registers a listener for records of one file, or all files
// when fileID is empty. The returned cancel func releases the
// subscription and closes the channel.
func (b *TailBroker) Subscribe(fileID string) (<-chan *model.LogRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &tailSub{ch: make(chan *model.LogRecord, b.bufSize), fileID: fileID}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish offers a record to every matching subscriber without
// blocking.
func (b *TailBroker) Publish(rec *model.LogRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.fileID != "" && sub.fileID != rec.FileID {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			logger.Debug("tail subscriber buffer full, dropping record",
				"file_id", rec.FileID, "line_no", rec.LineNo)
		}
	}
}
