package mocks

import (
	"crypto/rand"
	"sync"

	"github.com/mcoot/cardroom/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queues are consumed in order; an empty String queue falls back to
// generated values so tests only script what they assert on.
type MockRandom struct {
	mu sync.Mutex

	// IntnResults is a queue of results to return from Intn
	IntnResults []int
	intnIndex   int

	// StringResults is a queue of results to return from String
	StringResults []string
	stringIndex   int

	// BytesResults is a queue of results to return from Bytes
	BytesResults [][]byte
	bytesIndex   int

	// BytesErr, when set, is returned by every Bytes call
	BytesErr error

	fallback random.CryptoRandom
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// String returns the next queued result, or a generated one if none remaining
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stringIndex >= len(r.StringResults) {
		return r.fallback.String(length, alphabet)
	}
	result := r.StringResults[r.stringIndex]
	r.stringIndex++
	return result
}

// Bytes returns the next queued result, or fresh random bytes if none remaining
func (r *MockRandom) Bytes(n int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.BytesErr != nil {
		return nil, r.BytesErr
	}
	if r.bytesIndex >= len(r.BytesResults) {
		b := make([]byte, n)
		_, err := rand.Read(b)
		return b, err
	}
	result := r.BytesResults[r.bytesIndex]
	r.bytesIndex++
	return result, nil
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = append(r.IntnResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StringResults = append(r.StringResults, values...)
}

// QueueBytes adds values to the Bytes result queue
func (r *MockRandom) QueueBytes(values ...[]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BytesResults = append(r.BytesResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = nil
	r.intnIndex = 0
	r.StringResults = nil
	r.stringIndex = 0
	r.BytesResults = nil
	r.bytesIndex = 0
	r.BytesErr = nil
}
