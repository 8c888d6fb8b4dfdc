package journal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrSinkClosed = errors.New("journal sink is closed")

const writeQueueSize = 64

// FileSink appends journal lines to a flat file. All writes funnel through a
// single goroutine so concurrent triggers cannot interleave lines.
type FileSink struct {
	path    string
	queue   chan request
	mu      sync.Mutex
	closed  bool
	writeWG sync.WaitGroup
}

type request struct {
	entry  Entry
	result chan error
}

func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	sink := &FileSink{
		path:  path,
		queue: make(chan request, writeQueueSize),
	}
	sink.writeWG.Add(1)
	go sink.writeLoop()
	return sink, nil
}

// Record appends one entry and reports the write outcome.
func (sink *FileSink) Record(entry Entry) error {
	if sink == nil {
		return ErrSinkClosed
	}
	sink.mu.Lock()
	if sink.closed {
		sink.mu.Unlock()
		return ErrSinkClosed
	}
	req := request{entry: entry, result: make(chan error, 1)}
	sink.queue <- req
	sink.mu.Unlock()

	return <-req.result
}

// Close drains queued writes and stops the writer goroutine.
func (sink *FileSink) Close() error {
	if sink == nil {
		return nil
	}
	sink.mu.Lock()
	if sink.closed {
		sink.mu.Unlock()
		return nil
	}
	sink.closed = true
	close(sink.queue)
	sink.mu.Unlock()

	sink.writeWG.Wait()
	return nil
}

func (sink *FileSink) writeLoop() {
	defer sink.writeWG.Done()
	for req := range sink.queue {
		req.result <- sink.append(req.entry)
	}
}

func (sink *FileSink) append(entry Entry) error {
	file, err := os.OpenFile(sink.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", sink.path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(FormatEntry(entry) + "\n"); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// ReadLast returns up to limit entries from the end of a journal file.
// Malformed lines are skipped.
func ReadLast(path string, limit int) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := ParseEntry(scanner.Text())
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
