package session

import (
	"sync"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// BaselineStore хранит единственный эталонный кадр. Отсутствие эталона означает режим калибровки.
type BaselineStore struct {
	mu       sync.RWMutex
	snapshot *pose.Frame
}

// NewBaselineStore создает пустое хранилище
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{}
}

// Save перезаписывает эталон копией кадра. Полнота точек не проверяется:
// неполный эталон проявится как KeypointsMissing при классификации.
func (b *BaselineStore) Save(frame *pose.Frame) {
	snapshot := frame.Clone()

	b.mu.Lock()
	b.snapshot = snapshot
	b.mu.Unlock()
}

// Reset удаляет эталон
func (b *BaselineStore) Reset() {
	b.mu.Lock()
	b.snapshot = nil
	b.mu.Unlock()
}

// Get возвращает копию эталона или nil
func (b *BaselineStore) Get() *pose.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.Clone()
}

// IsSet сообщает, что эталон сохранен
func (b *BaselineStore) IsSet() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot != nil
}

// current возвращает сам эталон без копирования, только для чтения
func (b *BaselineStore) current() *pose.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}
