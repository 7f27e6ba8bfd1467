package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Persister is the durable medium behind the Store. Only the user record is
// ever handed to it.
type Persister interface {
	Load(ctx context.Context) (*UserRecord, error)
	Save(ctx context.Context, user *UserRecord) error
	Clear(ctx context.Context) error
}

func encodeDocument(user *UserRecord) ([]byte, error) {
	data, err := json.Marshal(document{User: user})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (*UserRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session document: %w", err)
	}
	return doc.User, nil
}

// MemoryStore keeps the encoded document in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeDocument(m.data)
}

func (m *MemoryStore) Save(_ context.Context, user *UserRecord) error {
	data, err := encodeDocument(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// Raw returns the encoded document as written.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
