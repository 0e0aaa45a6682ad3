package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/sprucehealth/payflow/libs/clock"
)

func TestMemoryFixedWindow(t *testing.T) {
	clk := clock.NewManaged(time.Unix(1700000000, 0))
	rl := NewMemory(clk, 5, 60)

	for i := 0; i < 5; i++ {
		ok, err := rl.Check("ip:abc", 1)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	ok, err := rl.Check("ip:abc", 1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Request 6 should be limited")
	}

	// A different key is unaffected
	ok, err = rl.Check("ip:other", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Different key should be allowed")
	}

	// A new window resets the count
	clk.WarpForward(time.Minute + time.Second)
	ok, err = rl.Check("ip:abc", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Request in a new window should be allowed")
	}
}

func TestMemoryCostAboveMax(t *testing.T) {
	rl := NewMemory(clock.New(), 5, 60)
	ok, err := rl.Check("k", 6)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Cost above max should never be allowed")
	}
}

func TestMemoryConcurrent(t *testing.T) {
	clk := clock.NewManaged(time.Unix(1700000000, 0))
	rl := NewMemory(clk, 5, 60)

	var wg sync.WaitGroup
	allowed := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := rl.Check("ip:abc", 1)
			if err != nil {
				t.Error(err)
				return
			}
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	n := 0
	for ok := range allowed {
		if ok {
			n++
		}
	}
	if n != 5 {
		t.Fatalf("Expected exactly 5 allowed, got %d", n)
	}
}

func TestWindowKey(t *testing.T) {
	// Aligned to the start of a window
	now := time.Unix(1700000040, 0)
	k1 := windowKey("p", now, 60)
	k2 := windowKey("p", now.Add(59*time.Second), 60)
	k3 := windowKey("p", now.Add(61*time.Second), 60)
	if k1 != k2 {
		t.Errorf("Keys within a window should match: %s != %s", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("Keys across windows should differ: %s == %s", k1, k3)
	}
}
