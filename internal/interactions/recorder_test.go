// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package interactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

func testRecorderConfig() config.InteractionsConfig {
	return config.InteractionsConfig{
		ViewDedupWindow:      time.Hour,
		ViewDedupMaxKeys:     1000,
		ProfileQueueSize:     16,
		ProfileRatePerSecond: 1000,
	}
}

func newTestRecorder(t *testing.T) (*Recorder, *store.Memory, func(time.Time)) {
	t.Helper()
	m := store.NewMemory()
	if err := m.UpsertContent(context.Background(), models.ContentItem{
		ID: 1, AuthorID: 101, Topic: "go", CreatedAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("UpsertContent: %v", err)
	}

	r := NewRecorder(m, testRecorderConfig())
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })
	setNow := func(at time.Time) {
		now = at
	}
	return r, m, setNow
}

func likeCount(t *testing.T, m *store.Memory, contentID int64) int64 {
	t.Helper()
	batch, err := m.GetContentBatch(context.Background(), []int64{contentID})
	if err != nil {
		t.Fatalf("GetContentBatch: %v", err)
	}
	return batch[contentID].LikeCount
}

func viewCount(t *testing.T, m *store.Memory, contentID int64) int64 {
	t.Helper()
	batch, err := m.GetContentBatch(context.Background(), []int64{contentID})
	if err != nil {
		t.Fatalf("GetContentBatch: %v", err)
	}
	return batch[contentID].ViewCount
}

func TestRecordLikeIdempotent(t *testing.T) {
	r, m, _ := newTestRecorder(t)
	ctx := context.Background()

	ev := models.InteractionEvent{UserID: 7, ContentID: 1, Type: models.InteractionLike}

	outcome, err := r.Record(ctx, ev)
	if err != nil || outcome != OutcomeCreated {
		t.Fatalf("first like: outcome=%v err=%v", outcome, err)
	}
	outcome, err = r.Record(ctx, ev)
	if err != nil {
		t.Fatalf("second like: %v", err)
	}
	if outcome != OutcomeDuplicateSuppressed {
		t.Errorf("second like outcome = %v, want duplicate_suppressed", outcome)
	}

	if got := likeCount(t, m, 1); got != 1 {
		t.Errorf("like count = %d, want exactly 1 after double like", got)
	}
}

func TestRecordViewDedupWindow(t *testing.T) {
	r, m, setNow := newTestRecorder(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	view := models.InteractionEvent{UserID: 7, ContentID: 1, Type: models.InteractionView}

	outcome, err := r.Record(ctx, view)
	if err != nil || outcome != OutcomeCreated {
		t.Fatalf("first view: outcome=%v err=%v", outcome, err)
	}

	// repeat inside the window: dropped entirely
	setNow(base.Add(30 * time.Minute))
	outcome, err = r.Record(ctx, view)
	if err != nil {
		t.Fatalf("repeat view: %v", err)
	}
	if outcome != OutcomeDuplicateSuppressed {
		t.Errorf("repeat view outcome = %v, want duplicate_suppressed", outcome)
	}
	if got := viewCount(t, m, 1); got != 1 {
		t.Errorf("view count = %d after in-window repeat, want 1", got)
	}

	// after the window elapses a new view counts again
	setNow(base.Add(90 * time.Minute))
	outcome, err = r.Record(ctx, view)
	if err != nil || outcome != OutcomeCreated {
		t.Fatalf("post-window view: outcome=%v err=%v", outcome, err)
	}
	if got := viewCount(t, m, 1); got != 2 {
		t.Errorf("view count = %d after window elapsed, want 2", got)
	}
}

func TestRecordViewDedupPerViewer(t *testing.T) {
	r, m, _ := newTestRecorder(t)
	ctx := context.Background()

	for _, userID := range []int64{7, 8, 9} {
		ev := models.InteractionEvent{UserID: userID, ContentID: 1, Type: models.InteractionView}
		outcome, err := r.Record(ctx, ev)
		if err != nil || outcome != OutcomeCreated {
			t.Fatalf("user %d view: outcome=%v err=%v", userID, outcome, err)
		}
	}
	if got := viewCount(t, m, 1); got != 3 {
		t.Errorf("view count = %d, want 3 (one per viewer)", got)
	}
}

func TestRecordCommentsRepeat(t *testing.T) {
	r, m, _ := newTestRecorder(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := models.InteractionEvent{UserID: 7, ContentID: 1, Type: models.InteractionComment}
		outcome, err := r.Record(ctx, ev)
		if err != nil || outcome != OutcomeCreated {
			t.Fatalf("comment %d: outcome=%v err=%v", i, outcome, err)
		}
	}

	batch, err := m.GetContentBatch(ctx, []int64{1})
	if err != nil {
		t.Fatalf("GetContentBatch: %v", err)
	}
	if got := batch[1].CommentCount; got != 3 {
		t.Errorf("comment count = %d, want 3 (comments repeat freely)", got)
	}
}

// flakyAppendStore fails AppendInteraction a set number of times before
// recovering.
type flakyAppendStore struct {
	*store.Memory
	failures int
}

func (s *flakyAppendStore) AppendInteraction(ctx context.Context, ev models.InteractionEvent) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, errors.New("store unavailable")
	}
	return s.Memory.AppendInteraction(ctx, ev)
}

func TestRecordViewRetryAfterWriteFailure(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.UpsertContent(ctx, models.ContentItem{
		ID: 1, AuthorID: 101, Topic: "go", CreatedAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("UpsertContent: %v", err)
	}

	flaky := &flakyAppendStore{Memory: m, failures: 1}
	r := NewRecorder(flaky, testRecorderConfig())
	r.SetClock(func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) })

	view := models.InteractionEvent{UserID: 7, ContentID: 1, Type: models.InteractionView}

	if _, err := r.Record(ctx, view); err == nil {
		t.Fatal("failing store returned nil error")
	}

	// the failed attempt must not occupy the dedup window: the immediate
	// retry is a fresh view, not a suppressed repeat
	outcome, err := r.Record(ctx, view)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("retry outcome = %v, want created", outcome)
	}
	if got := viewCount(t, m, 1); got != 1 {
		t.Errorf("view count = %d after retry, want 1", got)
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	r, _, _ := newTestRecorder(t)

	_, err := r.Record(context.Background(), models.InteractionEvent{
		UserID: 7, ContentID: 1, Type: "superlike",
	})
	if err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestProfileWorkerAppliesAffinity(t *testing.T) {
	r, m, _ := newTestRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.RunProfileWorker(ctx)
	}()

	if _, err := r.Record(ctx, models.InteractionEvent{UserID: 7, ContentID: 1, Type: models.InteractionShare}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		profile, err := m.TopicAffinity(ctx, 7)
		if err != nil {
			t.Fatalf("TopicAffinity: %v", err)
		}
		if profile["go"] == affinityDelta[models.InteractionShare] {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("affinity never applied, profile=%v", profile)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
