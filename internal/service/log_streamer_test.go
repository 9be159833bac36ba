package service

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gamevisor/internal/models"
)

func newTestStreamer(t *testing.T, opts LogStreamerOptions) *LogStreamer {
	t.Helper()
	if opts.MaxEntries == 0 {
		opts.MaxEntries = 100
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 100
	}
	return NewLogStreamer(opts, zap.NewNop().Sugar())
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed in time")
	}
}

func TestLogBufferKeepsNewest(t *testing.T) {
	lb := NewLogBuffer(3)
	for i, lvl := range []models.LogLevel{models.LogInfo, models.LogError, models.LogInfo, models.LogError, models.LogInfo} {
		lb.Add(models.LogRecord{Level: lvl, Message: string(rune('a' + i))})
	}

	assert.Equal(t, 3, lb.Len())

	var msgs []string
	for _, r := range lb.GetLast(0) {
		msgs = append(msgs, r.Message)
	}
	assert.Equal(t, []string{"c", "d", "e"}, msgs)

	errs := lb.GetByLevel(models.LogError, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, "d", errs[0].Message)

	infos := lb.GetByLevel(models.LogInfo, 1)
	require.Len(t, infos, 1)
	assert.Equal(t, "e", infos[0].Message)
}

func TestLogStreamerTagsStreams(t *testing.T) {
	ls := newTestStreamer(t, LogStreamerOptions{})

	drained := ls.Attach(strings.NewReader("first\nsecond\n"), strings.NewReader("boom\n"))
	waitClosed(t, drained)
	ls.Close()

	records := ls.Records()
	require.Len(t, records, 3)

	var stdout []string
	for _, r := range records {
		switch r.Source {
		case models.SourceStdout:
			assert.Equal(t, models.LogInfo, r.Level)
			stdout = append(stdout, r.Message)
		case models.SourceStderr:
			assert.Equal(t, models.LogError, r.Level)
			assert.Equal(t, "boom", r.Message)
		default:
			t.Fatalf("unexpected source %q", r.Source)
		}
	}
	assert.Equal(t, []string{"first", "second"}, stdout)
}

func TestLogStreamerHookSeesStdoutOnly(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	ls := newTestStreamer(t, LogStreamerOptions{
		Hook: func(line string) {
			mu.Lock()
			seen = append(seen, line)
			mu.Unlock()
		},
	})
	defer ls.Close()

	waitClosed(t, ls.Attach(strings.NewReader("out\n"), strings.NewReader("err\n")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"out"}, seen)
}

func TestLogStreamerWritesSink(t *testing.T) {
	var sink bytes.Buffer
	ls := newTestStreamer(t, LogStreamerOptions{Sink: &sink})

	ls.Log(models.LogWarning, "supervisor says hi")
	ls.Close()

	assert.Contains(t, sink.String(), "[warning] [supervisor] supervisor says hi")
}

func TestLogStreamerDrainsAfterClose(t *testing.T) {
	ls := newTestStreamer(t, LogStreamerOptions{})
	ls.Close()

	pr, pw := io.Pipe()
	drained := ls.Attach(pr, nil)

	// The writer must never block even though nothing is stored any more.
	written := make(chan struct{})
	go func() {
		defer close(written)
		for i := 0; i < 100; i++ {
			io.WriteString(pw, "line\n")
		}
		pw.Close()
	}()

	waitClosed(t, written)
	waitClosed(t, drained)
	assert.Zero(t, ls.buffer.Len())
}

func TestLogStreamerLast(t *testing.T) {
	ls := newTestStreamer(t, LogStreamerOptions{MaxEntries: 2})

	waitClosed(t, ls.Attach(strings.NewReader("a\nb\nc\n"), nil))
	ls.Close()

	last := ls.Last(1)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].Message)
	assert.Len(t, ls.Records(), 2)
	assert.Zero(t, ls.Dropped())
}

func TestLogStreamerSkipsOversizedLine(t *testing.T) {
	tracker := NewPlayerTracker()
	ls := newTestStreamer(t, LogStreamerOptions{Hook: tracker.Observe})

	huge := strings.Repeat("x", maxLineSize+10)
	stdout := strings.NewReader(huge + "\r\nafter\n[12:00:00] [Server thread/INFO]: Steve joined the game\n")

	drained := ls.Attach(stdout, nil)
	waitClosed(t, drained)
	ls.Close()

	var warnings, messages []string
	for _, r := range ls.Records() {
		if r.Source == models.SourceSupervisor {
			assert.Equal(t, models.LogWarning, r.Level)
			warnings = append(warnings, r.Message)
			continue
		}
		messages = append(messages, r.Message)
	}

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Skipped a stdout line")
	assert.Equal(t, []string{"after", "[12:00:00] [Server thread/INFO]: Steve joined the game"}, messages)
	assert.Equal(t, 1, tracker.Count())
}
