package watch_test

import (
	"testing"
	"time"

	"github.com/LayerTwo-Labs/bitassetsd/internal/watch"
)

func TestNotifyWakesSubscriber(t *testing.T) {
	s := watch.New()
	c := s.C()

	select {
	case <-c:
		t.Fatal("channel closed before Notify")
	default:
	}

	s.Notify()

	select {
	case <-c:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not woken")
	}

	// The rotated channel must be distinct and open until the next Notify.
	next := s.C()
	select {
	case <-next:
		t.Fatal("rotated channel should not be closed yet")
	default:
	}
}
