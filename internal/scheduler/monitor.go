package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"amv-gen/internal/logging"
)

const (
	heapWarnBytes          = 600 * 1024 * 1024
	heapCritBytes          = 1200 * 1024 * 1024
	goroutineWarnThreshold = 500
	goroutineCritThreshold = 1000
	monitorInterval        = 30 * time.Second
	warnEvery              = 5 * time.Minute
)

type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelCritical
)

type Snapshot struct {
	HeapBytes  uint64
	SysBytes   uint64
	Goroutines int
}

func readSnapshot() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Snapshot{HeapBytes: ms.HeapAlloc, SysBytes: ms.Sys, Goroutines: runtime.NumGoroutine()}
}

// Classify maps a snapshot to the worst threshold it crosses.
func Classify(s Snapshot) Level {
	switch {
	case s.HeapBytes >= heapCritBytes || s.Goroutines >= goroutineCritThreshold:
		return LevelCritical
	case s.HeapBytes >= heapWarnBytes || s.Goroutines >= goroutineWarnThreshold:
		return LevelWarn
	default:
		return LevelOK
	}
}

// ResourceMonitor watches heap and goroutine counts of a long-running
// process and logs when they cross thresholds.
type ResourceMonitor struct {
	log      *logging.Logger
	interval time.Duration
	read     func() Snapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	lastWarn time.Time
}

func NewResourceMonitor(log *logging.Logger) *ResourceMonitor {
	if log == nil {
		log = logging.Discard()
	}
	log.Infof("resource monitor: CPU cores=%d", runtime.NumCPU())
	return &ResourceMonitor{
		log:      log,
		interval: monitorInterval,
		read:     readSnapshot,
		stopCh:   make(chan struct{}),
	}
}

func (m *ResourceMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.check(time.Now())
			}
		}
	}()
}

func (m *ResourceMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *ResourceMonitor) check(now time.Time) Level {
	s := m.read()
	level := Classify(s)
	switch level {
	case LevelCritical:
		m.log.Errorf("resource monitor: CRITICAL heap=%dMB sys=%dMB goroutines=%d",
			s.HeapBytes>>20, s.SysBytes>>20, s.Goroutines)
	case LevelWarn:
		if now.Sub(m.lastWarn) < warnEvery {
			break
		}
		m.lastWarn = now
		m.log.Warnf("resource monitor: heap=%dMB sys=%dMB goroutines=%d",
			s.HeapBytes>>20, s.SysBytes>>20, s.Goroutines)
	}
	return level
}
