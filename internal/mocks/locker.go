package mocks

import "github.com/mcdonaldj/deployctl/internal/ports"

// MockLocker implements ports.Locker for testing.
type MockLocker struct {
	// Acquired records every path locked, in order.
	Acquired []string
	// Released counts release calls, to assert locks drop on all exit paths.
	Released int
	// Err, when set, is returned by Acquire (simulates lock contention).
	Err error
}

// NewMockLocker creates a new mock locker.
func NewMockLocker() *MockLocker {
	return &MockLocker{}
}

// Acquire records the lock and returns a release that counts itself.
func (m *MockLocker) Acquire(projectPath string) (func(), error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Acquired = append(m.Acquired, projectPath)
	return func() { m.Released++ }, nil
}

// Compile-time check that MockLocker implements ports.Locker.
var _ ports.Locker = (*MockLocker)(nil)
