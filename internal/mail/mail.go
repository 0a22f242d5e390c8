package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Message is one inbound order email, already decoded to plain text.
type Message struct {
	UID     string
	Subject string
	Body    string
	From    string
	Date    time.Time
}

// Source supplies unread order emails. Fetching is a collaborator
// concern: the engine only needs messages in arrival order and a way
// to mark them handled.
type Source interface {
	FetchUnread(ctx context.Context) ([]Message, error)
	MarkProcessed(ctx context.Context, uid string) error
}

// MemorySource is an in-memory Source for tests and the one-shot CLI
// path.
type MemorySource struct {
	mu        sync.Mutex
	messages  []Message
	processed map[string]bool
}

func NewMemorySource(messages ...Message) *MemorySource {
	return &MemorySource{messages: messages, processed: make(map[string]bool)}
}

// Add appends a message to the unread queue.
func (s *MemorySource) Add(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

func (s *MemorySource) FetchUnread(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unread []Message
	for _, m := range s.messages {
		if !s.processed[m.UID] {
			unread = append(unread, m)
		}
	}
	return unread, nil
}

func (s *MemorySource) MarkProcessed(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[uid] = true
	return nil
}

// DirSource reads order emails dropped as text files into a directory.
// The first line of each file is the subject, the rest the body.
// Processed files are renamed with a ".done" suffix so a crash never
// double-posts.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) FetchUnread(ctx context.Context) ([]Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read mail directory %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".done") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var messages []Message
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read message %s: %w", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat message %s: %w", name, err)
		}

		subject, body, _ := strings.Cut(string(raw), "\n")
		messages = append(messages, Message{
			UID:     name,
			Subject: strings.TrimSpace(subject),
			Body:    body,
			Date:    info.ModTime(),
		})
	}
	return messages, nil
}

func (s *DirSource) MarkProcessed(ctx context.Context, uid string) error {
	old := filepath.Join(s.dir, uid)
	if err := os.Rename(old, old+".done"); err != nil {
		return fmt.Errorf("mark message %s processed: %w", uid, err)
	}
	return nil
}
