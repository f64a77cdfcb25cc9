package testkit

import "testing"

func TestMustPanicCatchesPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanicPasses(t *testing.T) {
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	MustContain(t, "content_hash=abc123", "content_hash")
}

func TestSwapRestores(t *testing.T) {
	v := func() int { return 1 }
	target := &v
	t.Run("inner", func(t *testing.T) {
		Swap(t, target, func() int { return 2 })
		if (*target)() != 2 {
			t.Fatalf("swap did not take effect")
		}
	})
	if (*target)() != 1 {
		t.Fatalf("swap did not restore original")
	}
}
