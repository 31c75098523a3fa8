package risk

import "testing"

func TestTrailingStopRatchetsUpOnlyForLong(t *testing.T) {
	tr := NewTrailingStopTracker()
	tr.Track("BTCUSDT", true, 100, 95, 120, 2, 0.5)

	stop, ok := tr.Update("BTCUSDT", 105)
	if !ok {
		t.Fatal("expected tracked position")
	}
	if stop != 95 {
		t.Fatalf("stop=%v before activation threshold, want unchanged 95", stop)
	}

	// progress = 110-100=10, total = 120-100=20, ratio 0.5 arms the trail.
	stop, _ = tr.Update("BTCUSDT", 110)
	if stop != 108 {
		t.Fatalf("stop=%v after arming at high-water 110, want 108", stop)
	}

	// price retreats: stop must not loosen.
	stop, _ = tr.Update("BTCUSDT", 107)
	if stop != 108 {
		t.Fatalf("stop=%v after pullback, want unchanged 108", stop)
	}
}

func TestTrailingStopUntrackRemoves(t *testing.T) {
	tr := NewTrailingStopTracker()
	tr.Track("ETHUSDT", false, 100, 105, 80, 1, 0.5)
	tr.Untrack("ETHUSDT")
	if _, ok := tr.Stop("ETHUSDT"); ok {
		t.Fatal("expected Stop to report untracked after Untrack")
	}
}
