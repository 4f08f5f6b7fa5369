// Package transcript records chat tester conversations as JSONL files, one
// file per started chat, with an index.json listing them.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

var ErrNotFound = errors.New("transcript not found")

// Store manages the transcripts in a directory. It implements chat.Recorder.
type Store struct {
	dir       string
	eventChan chan string

	mu      sync.RWMutex
	subs    []chan string
	current map[string]string // session/agent -> transcript id
	files   map[string]*os.File
}

var _ chat.Recorder = (*Store)(nil)

// Open creates dir if needed and returns a Store for it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}
	s := &Store{
		dir:       dir,
		eventChan: make(chan string, 100),
		current:   make(map[string]string),
		files:     make(map[string]*os.File),
	}
	go s.broadcastLoop()
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file of a transcript.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// ChatStarted begins a new transcript for the chat.
func (s *Store) ChatStarted(info chat.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chatKey(info)
	if old, ok := s.current[key]; ok {
		s.closeLocked(old)
	}

	id := uuid.New().String()
	path := s.Path(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create transcript file: %w", err)
	}

	now := time.Now()
	header := Header{Type: TypeTranscript, ID: id, Chat: info, Version: 1, CreatedAt: now}
	if err := writeLine(f, header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write transcript header: %w", err)
	}
	s.current[key] = id
	s.files[id] = f

	meta := Meta{
		ID:          id,
		Path:        path,
		GameUUID:    info.GameUUID,
		SessionUUID: info.SessionUUID,
		AgentUUID:   info.AgentUUID,
		PlayerUUID:  info.PlayerUUID,
		Created:     now,
		Modified:    now,
	}
	if err := s.updateIndex(meta.ID, func(m *Meta) { *m = meta }); err != nil {
		slog.Error("Failed to update transcript index", "error", err)
	}
	s.publish(id)
	return nil
}

// TurnAppended appends a turn to the chat's current transcript.
func (s *Store) TurnAppended(info chat.Info, index int, turn chat.Turn, debug []content.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.current[chatKey(info)]
	if !ok {
		return fmt.Errorf("%w: no transcript for session %s", ErrNotFound, info.SessionUUID)
	}
	e := Entry{
		Type:      TypeTurn,
		ID:        uuid.New().String(),
		Index:     index,
		Timestamp: time.Now(),
		Turn:      turn,
		Debug:     debug,
	}
	if err := writeLine(s.files[id], e); err != nil {
		return err
	}
	if err := s.updateIndex(id, func(m *Meta) {
		m.Turns = index + 1
		m.Modified = e.Timestamp
	}); err != nil {
		slog.Error("Failed to update transcript index", "error", err)
	}
	s.publish(id)
	return nil
}

// List returns every transcript, most recently modified first.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(idx.Transcripts, func(i, j int) bool {
		return idx.Transcripts[i].Modified.After(idx.Transcripts[j].Modified)
	})
	return idx.Transcripts, nil
}

// Load reads a transcript.
func (s *Store) Load(id string) (Header, []Entry, error) {
	f, err := os.Open(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Header{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	r := NewReader(f)
	h, err := r.Header()
	if err != nil {
		return Header{}, nil, err
	}
	var entries []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return h, entries, err
		}
		entries = append(entries, e)
	}
	return h, entries, nil
}

// Subscribe returns a channel that receives the id of every transcript that
// changes, and a cancel func that removes and closes it. Slow subscribers
// miss events.
func (s *Store) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan string, 10)
	s.subs = append(s.subs, ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(c chan string) bool { return c == ch })
			close(ch)
		})
	}
}

// Close closes open transcript files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, f := range s.files {
		errs = append(errs, f.Close())
		delete(s.files, id)
	}
	s.current = make(map[string]string)
	return errors.Join(errs...)
}

func (s *Store) closeLocked(id string) {
	if f, ok := s.files[id]; ok {
		f.Close()
		delete(s.files, id)
	}
}

func (s *Store) broadcastLoop() {
	for id := range s.eventChan {
		s.mu.RLock()
		for _, sub := range s.subs {
			select {
			case sub <- id:
			default:
			}
		}
		s.mu.RUnlock()
	}
}

func (s *Store) publish(id string) {
	select {
	case s.eventChan <- id:
	default:
	}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *Store) readIndex() (Index, error) {
	var idx Index
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, fmt.Errorf("parse index: %w", err)
	}
	return idx, nil
}

// updateIndex applies fn to the entry for id, adding it if missing.
func (s *Store) updateIndex(id string, fn func(*Meta)) error {
	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	found := false
	for i := range idx.Transcripts {
		if idx.Transcripts[i].ID == id {
			fn(&idx.Transcripts[i])
			found = true
			break
		}
	}
	if !found {
		m := Meta{ID: id}
		fn(&m)
		idx.Transcripts = append(idx.Transcripts, m)
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0644)
}

func chatKey(info chat.Info) string {
	return info.SessionUUID + "/" + info.AgentUUID
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Reader decodes a transcript stream line by line.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{scanner: sc}
}

// Header reads the first line.
func (r *Reader) Header() (Header, error) {
	var h Header
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return h, err
		}
		return h, io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(r.scanner.Bytes(), &h); err != nil {
		return h, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	return h, nil
}

// Next returns the next turn entry, or io.EOF. Lines that do not decode are
// skipped.
func (r *Reader) Next() (Entry, error) {
	for r.scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(r.scanner.Bytes(), &e); err != nil || e.Type != TypeTurn {
			continue
		}
		return e, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Entry{}, err
	}
	return Entry{}, io.EOF
}
