package testkit

import (
	"testing"
	"time"
)

var dial = func(addr string) string { return "real " + addr }

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, `{"level":"info","job_id":7}`, `"job_id":7`)
}

func TestSwap_RestoresAfterSubtest(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &dial, func(addr string) string { return "fake " + addr })
		if got := dial("db"); got != "fake db" {
			t.Fatalf("swap not applied: %q", got)
		}
	})
	if got := dial("db"); got != "real db" {
		t.Fatalf("swap not restored: %q", got)
	}
}

func TestSerial_Excludes(t *testing.T) {
	release := make(chan struct{})
	acquired := make(chan struct{})

	t.Run("holder", func(t *testing.T) {
		Serial(t)
		go func() {
			// blocks until holder's cleanup unlocks
			serial.Lock()
			serial.Unlock()
			close(acquired)
		}()
		select {
		case <-acquired:
			t.Fatal("lock acquired while held")
		case <-time.After(20 * time.Millisecond):
		}
		close(release)
	})
	<-release
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never released")
	}
}
