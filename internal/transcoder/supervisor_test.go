package transcoder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amps-media/amps/internal/config"
)

func sleepChannel(id int) config.Channel {
	return config.Channel{
		ID:     id,
		Name:   "test",
		Custom: &config.CustomCommand{Command: []string{"sleep", "60"}},
	}
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()

	s := New(Options{
		OutputDir:   t.TempDir(),
		GracePeriod: 2 * time.Second,
	})
	t.Cleanup(func() {
		s.CleanupAll()
	})
	return s
}

func TestGetOrStartSharesOneProcess(t *testing.T) {
	s := newTestSupervisor(t)
	ch := sleepChannel(1)

	const viewers = 8
	pids := make([]int, viewers)

	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			process, _, err := s.GetOrStart(ch, config.Profile{}, "")
			if err != nil {
				t.Errorf("GetOrStart: %v", err)
				return
			}
			pids[i] = process.PID()
		}(i)
	}
	wg.Wait()

	for i := 1; i < viewers; i++ {
		if pids[i] != pids[0] {
			t.Fatalf("viewer %d got pid %d, viewer 0 got pid %d", i, pids[i], pids[0])
		}
	}

	if got := s.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestGetOrStartRespawnsDeadProcess(t *testing.T) {
	s := newTestSupervisor(t)

	ch := config.Channel{
		ID:     1,
		Custom: &config.CustomCommand{Command: []string{"true"}},
	}

	first, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	second, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	if first == second {
		t.Error("dead process was handed out again")
	}
}

func TestStopThenStartIsFresh(t *testing.T) {
	s := newTestSupervisor(t)
	ch := sleepChannel(1)

	first, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	s.Stop(1, "")

	if first.Alive() {
		t.Error("process still alive after Stop")
	}

	second, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	if second.PID() == first.PID() {
		t.Error("expected a fresh process after Stop")
	}
}

func TestStopSingleVariant(t *testing.T) {
	s := newTestSupervisor(t)
	ch := sleepChannel(1)

	shared, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}
	hd, _, err := s.GetOrStart(ch, config.Profile{}, "hd")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	s.Stop(1, "hd")

	if hd.Alive() {
		t.Error("hd variant still alive after Stop")
	}
	if !shared.Alive() {
		t.Error("shared variant was stopped too")
	}
}

func TestPrivateVariantsAreIndependent(t *testing.T) {
	s := newTestSupervisor(t)
	ch := sleepChannel(1)

	tagA := PrivateVariant("")
	tagB := PrivateVariant("")
	if tagA == tagB {
		t.Fatalf("private tags collide: %q", tagA)
	}

	a, _, err := s.GetOrStart(ch, config.Profile{}, tagA)
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}
	b, _, err := s.GetOrStart(ch, config.Profile{}, tagB)
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	if a.PID() == b.PID() {
		t.Error("private sessions share a process")
	}

	s.Stop(1, tagA)

	if a.Alive() {
		t.Error("session A still alive after its stop")
	}
	if !b.Alive() {
		t.Error("session B was stopped by session A teardown")
	}
}

func TestStopKillsStubbornProcess(t *testing.T) {
	s := New(Options{
		OutputDir:   t.TempDir(),
		GracePeriod: 200 * time.Millisecond,
	})

	ch := config.Channel{
		ID: 1,
		Custom: &config.CustomCommand{
			Command: `trap "" TERM; while true; do sleep 1; done`,
			Shell:   true,
		},
	}

	process, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Stop(1, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if process.Alive() {
		t.Error("process survived the kill")
	}
}

func TestConcurrentStopNeverOrphansProcess(t *testing.T) {
	s := newTestSupervisor(t)
	ch := sleepChannel(1)

	var mu sync.Mutex
	var started []*Process

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				process, _, err := s.GetOrStart(ch, config.Profile{}, "")
				if err != nil {
					t.Errorf("GetOrStart: %v", err)
					return
				}
				mu.Lock()
				started = append(started, process)
				mu.Unlock()
				if j%3 == 0 {
					s.Stop(1, "")
				}
			}
		}()
	}
	wg.Wait()

	s.Stop(1, "")

	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d after final Stop, want 0", got)
	}
	for i, process := range started {
		if process.Alive() {
			t.Fatalf("process %d (pid %d) survived all stops", i, process.PID())
		}
	}
}

func TestCleanupAllRunsOnce(t *testing.T) {
	s := New(Options{
		OutputDir:   t.TempDir(),
		GracePeriod: 2 * time.Second,
	})

	if _, _, err := s.GetOrStart(sleepChannel(1), config.Profile{}, ""); err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}
	if _, _, err := s.GetOrStart(sleepChannel(2), config.Profile{}, ""); err != nil {
		t.Fatalf("GetOrStart: %v", err)
	}

	s.CleanupAll()

	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d after cleanup, want 0", got)
	}

	// second call must be a no-op, not a second sweep
	s.CleanupAll()
}

func TestGetOrStartConfigurationError(t *testing.T) {
	s := newTestSupervisor(t)

	ch := config.Channel{
		ID:     1,
		Custom: &config.CustomCommand{Command: 42},
	}

	_, _, err := s.GetOrStart(ch, config.Profile{}, "")
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}

	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestNewKeyDefaults(t *testing.T) {
	if got := NewKey(1, ""); got.Variant != DefaultVariant {
		t.Errorf("Variant = %q, want %q", got.Variant, DefaultVariant)
	}
	if got := NewKey(1, "hd"); got.Variant != "hd" {
		t.Errorf("Variant = %q, want hd", got.Variant)
	}
}
