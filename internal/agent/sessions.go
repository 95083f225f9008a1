package agent

import (
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Sessions keeps conversation histories in memory, keyed by thread ID.
type Sessions struct {
	mu      sync.Mutex
	threads map[string][]*genai.Content
}

func NewSessions() *Sessions {
	return &Sessions{threads: make(map[string][]*genai.Content)}
}

// NewThreadID returns a fresh random thread identifier.
func NewThreadID() string {
	return uuid.NewString()
}

// Load returns a copy of the thread history.
func (s *Sessions) Load(thread string) []*genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.threads[thread]
	return append([]*genai.Content(nil), history...)
}

func (s *Sessions) Save(thread string, history []*genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread] = append([]*genai.Content(nil), history...)
}

func (s *Sessions) Reset(thread string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, thread)
}

// Len reports the number of messages stored for thread.
func (s *Sessions) Len(thread string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads[thread])
}
