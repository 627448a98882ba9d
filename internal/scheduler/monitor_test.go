package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"amv-gen/internal/logging"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s    Snapshot
		want Level
	}{
		{Snapshot{HeapBytes: 10 << 20, Goroutines: 20}, LevelOK},
		{Snapshot{HeapBytes: 700 << 20, Goroutines: 20}, LevelWarn},
		{Snapshot{HeapBytes: 10 << 20, Goroutines: 600}, LevelWarn},
		{Snapshot{HeapBytes: 1300 << 20, Goroutines: 20}, LevelCritical},
		{Snapshot{HeapBytes: 700 << 20, Goroutines: 1500}, LevelCritical},
	}
	for _, c := range cases {
		if got := Classify(c.s); got != c.want {
			t.Errorf("Classify(%+v) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestMonitorRateLimitsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	log, err := logging.New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	m := NewResourceMonitor(log)
	m.read = func() Snapshot { return Snapshot{HeapBytes: 700 << 20, Goroutines: 5} }

	now := time.Now()
	m.check(now)
	m.check(now.Add(time.Minute))
	m.check(now.Add(6 * time.Minute))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "resource monitor: heap=700MB"); n != 2 {
		t.Fatalf("warnings logged = %d, want 2:\n%s", n, data)
	}
}

func TestMonitorStartStop(t *testing.T) {
	t.Parallel()

	m := NewResourceMonitor(nil)
	m.interval = time.Millisecond
	m.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}
