package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is an object held by MemoryClient.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Data        []byte
	PublicRead  bool
}

// MemoryClient implements Client in memory. It backs dry runs and tests.
type MemoryClient struct {
	mu      sync.Mutex
	objects map[string]*Object
	fail    map[string]error
	puts    int
}

// NewMemoryClient creates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		objects: make(map[string]*Object),
		fail:    make(map[string]error),
	}
}

// FailOn makes every Put of key return err.
func (m *MemoryClient) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[key] = err
}

// Put reads the body and keeps it under bucket/key.
func (m *MemoryClient) Put(_ context.Context, in *PutInput) (*PutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++

	if err, ok := m.fail[in.Key]; ok {
		return nil, fmt.Errorf("put object %q: %w", in.Key, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in.Body); err != nil {
		return nil, fmt.Errorf("read body for %q: %w", in.Key, err)
	}

	m.objects[in.Bucket+"/"+in.Key] = &Object{
		Bucket:      in.Bucket,
		Key:         in.Key,
		ContentType: in.ContentType,
		Data:        buf.Bytes(),
		PublicRead:  in.PublicRead,
	}
	return &PutResult{Key: in.Key}, nil
}

// Delete removes bucket/key. Missing objects are not an error, as with S3.
func (m *MemoryClient) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

// Object returns the stored object, or nil.
func (m *MemoryClient) Object(bucket, key string) *Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[bucket+"/"+key]
}

// Len returns the number of stored objects.
func (m *MemoryClient) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Puts returns how many Put calls were made, failed ones included.
func (m *MemoryClient) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
