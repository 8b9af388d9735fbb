// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/models"
)

// counterRetries bounds the optimistic-concurrency retry loop for
// read-modify-write transactions. With same-key writers serialized through
// the lock stripes, conflicts are rare, so a handful of retries is plenty.
const counterRetries = 16

// writeStripes sizes the lock table that serializes same-key
// read-modify-write transactions.
const writeStripes = 64

// Badger is the BadgerDB-backed Store. It owns the engine's durable state:
// content snapshots, engagement counters, the interaction log, seen
// records, follow edges, and interest profiles.
//
// Badger's SSI aborts every overlapping writer of a key except one, so a
// pure retry loop makes no forward-progress guarantee under sustained
// contention on a single counter. Hot keys instead take a stripe lock
// before their Update, serializing same-key writers in-process; the dir
// lock ensures no other process writes the database.
type Badger struct {
	db     *badger.DB
	log    zerolog.Logger
	writes [writeStripes]sync.Mutex
}

// writeLock returns the stripe mutex guarding key.
func (b *Badger) writeLock(key []byte) *sync.Mutex {
	h := fnv.New32a()
	h.Write(key)
	return &b.writes[h.Sum32()%writeStripes]
}

// OpenBadger opens (or creates) a Badger store at dir. An empty dir opens
// an in-memory instance, used by tests and ephemeral deployments.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Badger{db: db, log: logging.WithComponent("store")}, nil
}

// Close flushes and closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// RunGC runs one round of Badger value-log garbage collection. Returns
// badger.ErrNoRewrite when there was nothing to reclaim; callers treat
// that as a clean no-op.
func (b *Badger) RunGC(discardRatio float64) error {
	return b.db.RunValueLogGC(discardRatio)
}

// UpsertContent writes a content snapshot and its time and author index
// entries. Content normally arrives from the upstream content service;
// this is the ingestion point and the test seed helper.
func (b *Badger) UpsertContent(ctx context.Context, item models.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal content %d: %w", item.ID, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(contentKey(item.ID), data); err != nil {
			return fmt.Errorf("set content: %w", err)
		}
		if err := txn.Set(contentTimeKey(item.CreatedAt, item.ID), nil); err != nil {
			return fmt.Errorf("set content time index: %w", err)
		}
		if err := txn.Set(authorKey(item.AuthorID, item.CreatedAt, item.ID), nil); err != nil {
			return fmt.Errorf("set author index: %w", err)
		}
		return nil
	})
}

// AddEdge records that follower follows followed.
func (b *Badger) AddEdge(ctx context.Context, edge models.SocialEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(edgeKey(edge.FollowerID, edge.FollowedID), data)
	})
}

// RecentCandidates returns up to limit content items newest first.
func (b *Badger) RecentCandidates(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var ids []int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past every possible time-index key, then walk backwards.
		prefix := []byte{prefixContentTime}
		for it.Seek([]byte{prefixContentTime + 1}); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, readBE64(key[9:17]))
			if len(ids) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content time index: %w", err)
	}

	return b.contentByIDsOrdered(ids)
}

// AuthoredSince returns content from the given authors created after
// since, newest first, up to limit. One bounded range scan per author.
func (b *Badger) AuthoredSince(ctx context.Context, authorIDs []int64, since time.Time, limit int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(authorIDs) == 0 {
		return nil, nil
	}

	type stamped struct {
		id int64
		ts int64
	}
	var hits []stamped

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		floor := since.UnixNano()
		for _, authorID := range authorIDs {
			prefix := append([]byte{prefixAuthor}, be64(authorID)...)
			start := append(append([]byte{}, prefix...), be64(floor)...)
			for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().Key()
				hits = append(hits, stamped{id: readBE64(key[17:25]), ts: readBE64(key[9:17])})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan author index: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].ts != hits[j].ts {
			return hits[i].ts > hits[j].ts
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return b.contentByIDsOrdered(ids)
}

// GetContentBatch returns snapshots with live counter values folded in.
// Missing IDs are simply absent from the result.
func (b *Badger) GetContentBatch(ctx context.Context, ids []int64) (map[int64]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]models.ContentItem, len(ids))

	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := b.readContent(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementCounter atomically adds one to the engagement counter. The
// stripe lock serializes concurrent writers of the same counter, so the
// read-increment-write inside the Update cannot lose updates; the retry
// loop remains as a backstop for any residual ErrConflict.
func (b *Badger) IncrementCounter(ctx context.Context, contentID int64, typ models.InteractionType) error {
	key := counterKey(contentID, typ)

	mu := b.writeLock(key)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < counterRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(func(txn *badger.Txn) error {
			var current int64
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				// first interaction of this type
			case err != nil:
				return fmt.Errorf("get counter: %w", err)
			default:
				if verr := item.Value(func(val []byte) error {
					if len(val) != 8 {
						return fmt.Errorf("counter value has %d bytes, want 8", len(val))
					}
					current = readBE64(val)
					return nil
				}); verr != nil {
					return verr
				}
			}
			return txn.Set(key, be64(current+1))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("increment counter for content %d type %s: %w", contentID, typ, badger.ErrConflict)
}

// AppendInteraction stores the event, maintains the uniqueness marker for
// like/bookmark, and writes the time index used by trending scans. The
// stripe lock keyed on the (user, content) pair makes the uniqueness check
// race-free for concurrent duplicate submissions.
func (b *Badger) AppendInteraction(ctx context.Context, ev models.InteractionEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal interaction: %w", err)
	}

	mu := b.writeLock(interactionPairPrefix(ev.UserID, ev.ContentID))
	mu.Lock()
	defer mu.Unlock()

	created := false
	for attempt := 0; attempt < counterRetries; attempt++ {
		created = false
		err = b.db.Update(func(txn *badger.Txn) error {
			if ev.Type.Unique() {
				marker := uniqueMarkerKey(ev.UserID, ev.ContentID, ev.Type)
				_, gerr := txn.Get(marker)
				if gerr == nil {
					return nil // already recorded, idempotent no-op
				}
				if !errors.Is(gerr, badger.ErrKeyNotFound) {
					return fmt.Errorf("get uniqueness marker: %w", gerr)
				}
				if serr := txn.Set(marker, nil); serr != nil {
					return fmt.Errorf("set uniqueness marker: %w", serr)
				}
			}
			if serr := txn.Set(interactionKey(ev.UserID, ev.ContentID, ev.CreatedAt), data); serr != nil {
				return fmt.Errorf("set interaction: %w", serr)
			}
			if serr := txn.Set(eventTimeKey(ev.CreatedAt, ev.ContentID, ev.UserID), nil); serr != nil {
				return fmt.Errorf("set interaction time index: %w", serr)
			}
			created = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return created, err
	}
	return false, fmt.Errorf("append interaction: %w", badger.ErrConflict)
}

// ListInteractions returns all events for the (user, content) pair,
// oldest first. Key order already matches event time.
func (b *Badger) ListInteractions(ctx context.Context, userID, contentID int64) ([]models.InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []models.InteractionEvent

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := interactionPairPrefix(userID, contentID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ev models.InteractionEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("unmarshal interaction: %w", err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountsSince returns per-content interaction counts since the given time.
// The time index keeps this a single range scan bounded by the window.
func (b *Badger) CountsSince(ctx context.Context, since time.Time) (map[int64]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[int64]int64)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixEventTime}
		start := append(append([]byte{}, prefix...), be64(since.UnixNano())...)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			counts[readBE64(key[9:17])]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan interaction time index: %w", err)
	}
	return counts, nil
}

// MarkSeen idempotently records the content IDs as seen by the user.
// Returns the number of newly created records.
func (b *Badger) MarkSeen(ctx context.Context, userID int64, contentIDs []int64, source string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	newly := 0
	err := b.db.Update(func(txn *badger.Txn) error {
		newly = 0
		for _, contentID := range contentIDs {
			key := seenRecordKey(userID, contentID)
			rec := models.SeenRecord{
				UserID:      userID,
				ContentID:   contentID,
				FirstSeenAt: at,
				LastSeenAt:  at,
				Source:      source,
			}

			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				newly++
			case err != nil:
				return fmt.Errorf("get seen record: %w", err)
			default:
				var prev models.SeenRecord
				if verr := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &prev)
				}); verr != nil {
					return fmt.Errorf("unmarshal seen record: %w", verr)
				}
				rec.FirstSeenAt = prev.FirstSeenAt
			}

			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal seen record: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set seen record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newly, nil
}

// SeenSet returns the subset of contentIDs the user has seen.
func (b *Badger) SeenSet(ctx context.Context, userID int64, contentIDs []int64) (map[int64]models.SeenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]models.SeenRecord)

	err := b.db.View(func(txn *badger.Txn) error {
		for _, contentID := range contentIDs {
			item, err := txn.Get(seenRecordKey(userID, contentID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get seen record: %w", err)
			}
			var rec models.SeenRecord
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); verr != nil {
				return fmt.Errorf("unmarshal seen record: %w", verr)
			}
			out[contentID] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FollowedSet returns the IDs the user follows via one prefix scan.
func (b *Badger) FollowedSet(ctx context.Context, followerID int64) (map[int64]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]struct{})

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := edgePrefix(followerID)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			out[readBE64(key[9:17])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	return out, nil
}

// AddTopicAffinity adds delta to the user's affinity for topic.
func (b *Badger) AddTopicAffinity(ctx context.Context, userID int64, topic string, delta float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := profileKey(userID)

	mu := b.writeLock(key)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < counterRetries; attempt++ {
		err := b.db.Update(func(txn *badger.Txn) error {
			profile := make(map[string]float64)
			item, err := txn.Get(key)
			if err == nil {
				if verr := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &profile)
				}); verr != nil {
					return fmt.Errorf("unmarshal profile: %w", verr)
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("get profile: %w", err)
			}

			profile[topic] += delta
			data, err := json.Marshal(profile)
			if err != nil {
				return fmt.Errorf("marshal profile: %w", err)
			}
			return txn.Set(key, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("update profile for user %d: %w", userID, badger.ErrConflict)
}

// TopicAffinity returns the user's affinity map; missing users get an
// empty map.
func (b *Badger) TopicAffinity(ctx context.Context, userID int64) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile := make(map[string]float64)

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// contentByIDsOrdered loads snapshots preserving the input order.
func (b *Badger) contentByIDsOrdered(ids []int64) ([]models.ContentItem, error) {
	items := make([]models.ContentItem, 0, len(ids))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := b.readContent(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// index entry outlived the snapshot; skip
				b.log.Warn().Int64("content_id", id).Msg("dangling content index entry")
				continue
			}
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// readContent loads one snapshot and folds in live counter values so
// callers always see current engagement numbers.
func (b *Badger) readContent(txn *badger.Txn, id int64) (models.ContentItem, error) {
	var content models.ContentItem

	item, err := txn.Get(contentKey(id))
	if err != nil {
		return content, err
	}
	if verr := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &content)
	}); verr != nil {
		return content, fmt.Errorf("unmarshal content %d: %w", id, verr)
	}

	for _, typ := range []models.InteractionType{
		models.InteractionLike,
		models.InteractionComment,
		models.InteractionShare,
		models.InteractionView,
	} {
		n, err := b.readCounter(txn, id, typ)
		if err != nil {
			return content, err
		}
		switch typ {
		case models.InteractionLike:
			content.LikeCount += n
		case models.InteractionComment:
			content.CommentCount += n
		case models.InteractionShare:
			content.ShareCount += n
		case models.InteractionView:
			content.ViewCount += n
		}
	}
	return content, nil
}

func (b *Badger) readCounter(txn *badger.Txn, id int64, typ models.InteractionType) (int64, error) {
	item, err := txn.Get(counterKey(id, typ))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	var n int64
	if verr := item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("counter value has %d bytes, want 8", len(val))
		}
		n = readBE64(val)
		return nil
	}); verr != nil {
		return 0, verr
	}
	return n, nil
}

var _ Store = (*Badger)(nil)
