package slot

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps the slot in process memory. A positive quota rejects larger
// writes the way browser storage does when it runs out of room.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	present bool
	quota   int
	writes  int
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWithQuota returns a memory slot that refuses payloads over quota bytes.
func NewMemoryWithQuota(quota int) *Memory {
	return &Memory{quota: quota}
}

func (m *Memory) Read(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Write(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 && len(payload) > m.quota {
		return fmt.Errorf("write %d bytes: %w", len(payload), ErrQuotaExceeded)
	}
	m.data = append([]byte(nil), payload...)
	m.present = true
	m.writes++
	return nil
}

func (m *Memory) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.present = false
	return nil
}

// SetQuota changes the quota; zero disables it.
func (m *Memory) SetQuota(quota int) {
	m.mu.Lock()
	m.quota = quota
	m.mu.Unlock()
}

// Writes reports how many writes succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
