// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestDedupWindow_SuppressWithinWindow(t *testing.T) {
	d := NewDedupWindow(time.Hour, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.SetClock(func() time.Time { return current })

	if !d.Allow("u:1:42") {
		t.Fatal("first event should be admitted")
	}
	if d.Allow("u:1:42") {
		t.Error("immediate repeat should be suppressed")
	}

	// Still inside the window.
	current = base.Add(59 * time.Minute)
	if d.Allow("u:1:42") {
		t.Error("repeat within window should be suppressed")
	}

	// Window elapsed; next event admitted again.
	current = base.Add(61 * time.Minute)
	if !d.Allow("u:1:42") {
		t.Error("event after window should be admitted")
	}
}

func TestDedupWindow_SuppressedRepeatsDoNotExtendWindow(t *testing.T) {
	d := NewDedupWindow(time.Hour, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.SetClock(func() time.Time { return current })

	d.Allow("k")

	// Suppressed attempts near the end of the window.
	current = base.Add(55 * time.Minute)
	d.Allow("k")

	// The window is anchored on the admitted event at base, so this passes.
	current = base.Add(65 * time.Minute)
	if !d.Allow("k") {
		t.Error("suppressed repeats must not extend the window")
	}
}

func TestDedupWindow_DistinctKeysIndependent(t *testing.T) {
	d := NewDedupWindow(time.Hour, 0)

	if !d.Allow("a:1") {
		t.Error("first key should be admitted")
	}
	if !d.Allow("b:1") {
		t.Error("distinct key should be admitted")
	}
}

func TestDedupWindow_Prune(t *testing.T) {
	d := NewDedupWindow(time.Minute, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	d.SetClock(func() time.Time { return current })

	for i := 0; i < 10; i++ {
		d.Allow(fmt.Sprintf("k%d", i))
	}
	if d.Len() != 10 {
		t.Fatalf("expected 10 tracked keys, got %d", d.Len())
	}

	current = base.Add(2 * time.Minute)
	if removed := d.Prune(); removed != 10 {
		t.Errorf("expected 10 pruned, got %d", removed)
	}
	if d.Len() != 0 {
		t.Errorf("expected empty window, got %d keys", d.Len())
	}
}

func TestDedupWindow_MaxKeysBound(t *testing.T) {
	d := NewDedupWindow(time.Hour, 5)

	for i := 0; i < 20; i++ {
		d.Allow(fmt.Sprintf("k%d", i))
	}
	if d.Len() > 5 {
		t.Errorf("expected at most 5 tracked keys, got %d", d.Len())
	}
}

func TestDedupWindow_Concurrent(t *testing.T) {
	d := NewDedupWindow(time.Hour, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Allow("same-key") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("expected exactly 1 admitted event under concurrency, got %d", admitted)
	}
}
