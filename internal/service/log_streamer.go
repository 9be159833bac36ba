package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamevisor/internal/models"
)

// maxLineSize bounds a single console line. Longer lines are skipped.
const maxLineSize = 1024 * 1024

type LogBuffer struct {
	mu      sync.RWMutex
	entries *ring[models.LogRecord]
}

func NewLogBuffer(maxEntries int) *LogBuffer {
	return &LogBuffer{
		entries: newRing[models.LogRecord](maxEntries),
	}
}

func (lb *LogBuffer) Add(entry models.LogRecord) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries.push(entry)
}

// GetLast returns the newest n entries, oldest first. n <= 0 returns every
// retained entry.
func (lb *LogBuffer) GetLast(n int) []models.LogRecord {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return lb.entries.lastN(n)
}

func (lb *LogBuffer) GetByLevel(level models.LogLevel, n int) []models.LogRecord {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	filtered := []models.LogRecord{}
	lb.entries.each(func(e models.LogRecord) {
		if e.Level == level {
			filtered = append(filtered, e)
		}
	})

	if n <= 0 || len(filtered) <= n {
		return filtered
	}
	return filtered[len(filtered)-n:]
}

func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return lb.entries.len()
}

// LineHook observes every stdout line before it is queued.
type LineHook func(line string)

// LogStreamer drains process output into a LogBuffer. Each attached stream
// gets its own goroutine; all of them feed one bounded queue read by a single
// aggregator goroutine.
type LogStreamer struct {
	buffer *LogBuffer
	queue  *boundedQueue[models.LogRecord]
	sink   io.Writer
	hook   LineHook
	logger *zap.SugaredLogger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type LogStreamerOptions struct {
	MaxEntries int
	QueueSize  int
	Overflow   OverflowPolicy
	// Sink, if set, receives every record as a formatted line.
	Sink io.Writer
	// Hook, if set, sees every stdout line.
	Hook LineHook
}

// NewLogStreamer creates a streamer and starts its aggregator. Close stops
// it.
func NewLogStreamer(opts LogStreamerOptions, logger *zap.SugaredLogger) *LogStreamer {
	ctx, cancel := context.WithCancel(context.Background())

	ls := &LogStreamer{
		buffer: NewLogBuffer(opts.MaxEntries),
		queue:  newBoundedQueue[models.LogRecord](opts.QueueSize, opts.Overflow),
		sink:   opts.Sink,
		hook:   opts.Hook,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go ls.aggregate()
	return ls
}

func (ls *LogStreamer) aggregate() {
	defer close(ls.done)

	ls.queue.Consume(func(rec models.LogRecord) {
		ls.buffer.Add(rec)
		if ls.sink != nil {
			fmt.Fprintf(ls.sink, "[%s] [%s] [%s] %s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Level, rec.Source, rec.Message)
		}
	})
}

// Attach starts draining stdout (as info) and stderr (as error). The returned
// channel is closed once both streams reached end-of-file or failed.
func (ls *LogStreamer) Attach(stdout, stderr io.Reader) <-chan struct{} {
	var wg sync.WaitGroup
	drained := make(chan struct{})

	for _, s := range []struct {
		r      io.Reader
		source string
		level  models.LogLevel
	}{
		{stdout, models.SourceStdout, models.LogInfo},
		{stderr, models.SourceStderr, models.LogError},
	} {
		if s.r == nil {
			continue
		}
		wg.Add(1)
		go func(r io.Reader, source string, level models.LogLevel) {
			defer wg.Done()
			ls.drain(r, source, level)
		}(s.r, s.source, s.level)
	}

	go func() {
		wg.Wait()
		close(drained)
	}()

	return drained
}

func (ls *LogStreamer) drain(r io.Reader, source string, level models.LogLevel) {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		line      []byte
		oversized bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			line = append(line, chunk...)
			if len(line) > maxLineSize {
				oversized = true
				line = line[:0]
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}

		switch {
		case oversized:
			ls.Log(models.LogWarning, fmt.Sprintf("Skipped a %s line longer than %d bytes", source, maxLineSize))
			oversized = false
		case len(line) > 0:
			text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
			if !ls.emit(source, level, text) {
				// Keep reading so the child never blocks on a full pipe.
				io.Copy(io.Discard, br)
				return
			}
		}
		line = line[:0]

		if err != nil {
			if err != io.EOF {
				ls.logger.Warnw("log stream ended with error", "source", source, "error", err)
				io.Copy(io.Discard, br)
			}
			return
		}
	}
}

// emit queues one console line and reports whether the queue still accepts
// records.
func (ls *LogStreamer) emit(source string, level models.LogLevel, line string) bool {
	if source == models.SourceStdout && ls.hook != nil {
		ls.hook(line)
	}

	err := ls.queue.Push(ls.ctx, models.LogRecord{
		Timestamp: ls.now(),
		Level:     level,
		Source:    source,
		Message:   line,
	})
	if err != nil {
		ls.logger.Debugw("log stream stopped", "source", source, "error", err)
		return false
	}
	return true
}

// Log records a line produced by the supervisor itself.
func (ls *LogStreamer) Log(level models.LogLevel, message string) {
	err := ls.queue.Push(ls.ctx, models.LogRecord{
		Timestamp: ls.now(),
		Level:     level,
		Source:    models.SourceSupervisor,
		Message:   message,
	})
	if err != nil {
		ls.logger.Debugw("dropping supervisor log record", "error", err)
	}
}

func (ls *LogStreamer) Records() []models.LogRecord { return ls.buffer.GetLast(0) }

func (ls *LogStreamer) Last(n int) []models.LogRecord { return ls.buffer.GetLast(n) }

func (ls *LogStreamer) ByLevel(level models.LogLevel, n int) []models.LogRecord {
	return ls.buffer.GetByLevel(level, n)
}

// Dropped returns how many records the drop-oldest policy discarded.
func (ls *LogStreamer) Dropped() uint64 { return ls.queue.Dropped() }

// Close stops accepting records, flushes the queue and waits for the
// aggregator.
func (ls *LogStreamer) Close() {
	ls.queue.Close()
	ls.cancel()
	<-ls.done
}
