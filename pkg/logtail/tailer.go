package logtail

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const pollInterval = 500 * time.Millisecond

// source tracks one tailed file's read position and any trailing partial
// line carried over from the previous poll (spec §4.7 steps 1-5).
type source struct {
	name    string
	path    string
	offset  int64
	partial string
}

// Service polls a fixed set of named log files and feeds complete lines
// into a shared [Ring], grounded on the teacher's stopCh/WaitGroup
// background-loop idiom (pkg/queue/worker.go).
type Service struct {
	ring *Ring

	mu      sync.Mutex
	sources []*source

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService builds a tailer service over ring. Register sources with
// AddSource before calling Launch.
func NewService(ring *Ring) *Service {
	return &Service{ring: ring, stopCh: make(chan struct{})}
}

// AddSource registers a named file to tail (e.g. "pipeline", "backend").
func (s *Service) AddSource(name, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, &source{name: name, path: path})
}

// Ring returns the shared ring buffer entries are appended to.
func (s *Service) Ring() *Ring { return s.ring }

// Launch starts the polling loop in a goroutine.
func (s *Service) Launch(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Shutdown stops the polling loop and waits for it to exit.
func (s *Service) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	log := slog.With("component", "logtail")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAll(log)
		}
	}
}

func (s *Service) pollAll(log *slog.Logger) {
	s.mu.Lock()
	srcs := make([]*source, len(s.sources))
	copy(srcs, s.sources)
	s.mu.Unlock()

	for _, src := range srcs {
		if err := s.pollOne(src); err != nil {
			log.Warn("tail failed", "source", src.name, "path", src.path, "error", err)
		}
	}
}

// pollOne implements spec §4.7 steps 1-5 for a single source.
func (s *Service) pollOne(src *source) error {
	info, err := os.Stat(src.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.Size() < src.offset {
		src.offset = 0
		src.partial = ""
	}
	if info.Size() == src.offset {
		return nil
	}

	f, err := os.Open(src.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(src.offset, 0); err != nil {
		return err
	}

	buf, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	src.offset += int64(len(buf))

	chunk := src.partial + strings.ToValidUTF8(string(buf), "�")
	src.partial = ""

	lines := splitKeepPartial(chunk)
	now := time.Now()
	for i, line := range lines {
		isLast := i == len(lines)-1
		trimmed, complete := trimTerminator(line)
		if !complete {
			if isLast {
				src.partial = line
			}
			continue
		}
		s.ring.Append(src.name, trimmed, now)
	}
	return nil
}

// splitKeepPartial splits on '\n', keeping each line's trailing '\n' (and
// preceding '\r', if any) attached so trimTerminator can tell a complete
// line from a held partial.
func splitKeepPartial(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func trimTerminator(line string) (trimmed string, complete bool) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], true
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], true
	}
	return line, false
}
