// persistence/async.go
package persistence

import (
	"sync"

	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/models"
)

// AsyncWriter decouples game-state mutation from the durable store.
// Writes are handed off to a single background goroutine through a buffered
// channel; the caller never blocks on the database and never sees its
// errors. A failed or dropped write is logged and the in-memory state stays
// authoritative.
type AsyncWriter struct {
	db        Database
	queue     chan writeOp
	closeOnce sync.Once
	done      chan struct{}
}

type writeOp struct {
	name string
	fn   func(Database) error
}

const defaultQueueSize = 256

func NewAsyncWriter(db Database) *AsyncWriter {
	w := &AsyncWriter{
		db:    db,
		queue: make(chan writeOp, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *AsyncWriter) loop() {
	defer close(w.done)
	for op := range w.queue {
		if err := op.fn(w.db); err != nil {
			logger.Log.Errorf("persistence write %s failed: %v", op.name, err)
		}
	}
}

func (w *AsyncWriter) enqueue(op writeOp) {
	select {
	case w.queue <- op:
	default:
		// 队列满时丢弃并告警，绝不阻塞对局
		logger.Log.Warnf("persistence queue full, dropping %s", op.name)
	}
}

// UpdateGameStatus persists a status transition, best-effort.
func (w *AsyncWriter) UpdateGameStatus(gameID, status string) {
	w.enqueue(writeOp{
		name: "update_game_status",
		fn: func(db Database) error {
			return db.UpdateGameStatus(gameID, status)
		},
	})
}

// SaveGameRecord persists a settlement record, best-effort.
func (w *AsyncWriter) SaveGameRecord(record *models.GameRecord) {
	w.enqueue(writeOp{
		name: "save_game_record",
		fn: func(db Database) error {
			return db.SaveGameRecord(record)
		},
	})
}

// Close drains pending writes and stops the writer.
func (w *AsyncWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.queue)
	})
	<-w.done
}
