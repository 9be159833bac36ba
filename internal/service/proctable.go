package service

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// ProcStat is what the OS process table reports for one pid.
type ProcStat struct {
	CPUPercent  float64
	MemoryBytes uint64
}

// ProcessTable looks a pid up in the OS process table. ok is false when the
// process does not exist.
type ProcessTable interface {
	Lookup(pid int) (stat ProcStat, ok bool)
}

// NewProcessTable returns the procfs-backed table on Linux and a ps(1)
// backed one elsewhere.
func NewProcessTable() ProcessTable {
	if runtime.GOOS == "linux" {
		if fs, err := procfs.NewDefaultFS(); err == nil {
			return &procfsTable{fs: fs, last: make(map[int]cpuMark)}
		}
	}
	return psTable{}
}

type cpuMark struct {
	cpuSeconds float64
	at         time.Time
}

// procfsTable derives CPU usage from the delta of consumed CPU time between
// two lookups of the same pid.
type procfsTable struct {
	fs procfs.FS

	mu   sync.Mutex
	last map[int]cpuMark
}

func (t *procfsTable) Lookup(pid int) (ProcStat, bool) {
	if pid <= 0 {
		return ProcStat{}, false
	}

	proc, err := t.fs.Proc(pid)
	if err != nil {
		t.forget(pid)
		return ProcStat{}, false
	}

	stat, err := proc.Stat()
	if err != nil {
		t.forget(pid)
		return ProcStat{}, false
	}

	now := time.Now()
	cpu := stat.CPUTime()

	t.mu.Lock()
	prev, seen := t.last[pid]
	t.last[pid] = cpuMark{cpuSeconds: cpu, at: now}
	t.mu.Unlock()

	var percent float64
	if seen {
		if wall := now.Sub(prev.at).Seconds(); wall > 0 {
			percent = (cpu - prev.cpuSeconds) / wall * 100
		}
	}
	if percent < 0 {
		percent = 0
	}

	return ProcStat{
		CPUPercent:  percent,
		MemoryBytes: uint64(stat.ResidentMemory()),
	}, true
}

func (t *procfsTable) forget(pid int) {
	t.mu.Lock()
	delete(t.last, pid)
	t.mu.Unlock()
}

type psTable struct{}

func (psTable) Lookup(pid int) (ProcStat, bool) {
	if pid <= 0 {
		return ProcStat{}, false
	}

	output, err := exec.Command("ps", "-o", "rss=,%cpu=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return ProcStat{}, false
	}

	fields := strings.Fields(string(output))
	if len(fields) < 2 {
		return ProcStat{}, false
	}

	rssKB, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return ProcStat{}, false
	}

	cpu, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ProcStat{}, false
	}

	return ProcStat{CPUPercent: cpu, MemoryBytes: rssKB * 1024}, true
}
