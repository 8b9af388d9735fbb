// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package store

import (
	"encoding/binary"
	"time"

	"github.com/launchgrid/feedrank/internal/models"
)

// Badger key layout. All integer components are 8-byte big-endian so
// lexicographic key order matches numeric order, which makes prefix and
// range scans equivalent to index scans.
//
//	c  <content8>                       content snapshot (JSON)
//	C  <created8> <content8>            creation-time index
//	a  <author8> <created8> <content8>  author/creation index
//	n  <content8> <type>                engagement counter (8-byte int64)
//	i  <user8> <content8> <created8>    interaction event (JSON)
//	u  <user8> <content8> <type>        uniqueness marker for like/bookmark
//	t  <created8> <content8> <user8>    interaction-time index
//	s  <user8> <content8>               seen record (JSON)
//	e  <follower8> <followed8>          follow edge (JSON)
//	p  <user8>                          topic affinity profile (JSON)
const (
	prefixContent     = 'c'
	prefixContentTime = 'C'
	prefixAuthor      = 'a'
	prefixCounter     = 'n'
	prefixInteraction = 'i'
	prefixUnique      = 'u'
	prefixEventTime   = 't'
	prefixSeen        = 's'
	prefixEdge        = 'e'
	prefixProfile     = 'p'
)

func be64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func readBE64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func contentKey(contentID int64) []byte {
	return append([]byte{prefixContent}, be64(contentID)...)
}

func contentTimeKey(createdAt time.Time, contentID int64) []byte {
	key := append([]byte{prefixContentTime}, be64(createdAt.UnixNano())...)
	return append(key, be64(contentID)...)
}

func authorKey(authorID int64, createdAt time.Time, contentID int64) []byte {
	key := append([]byte{prefixAuthor}, be64(authorID)...)
	key = append(key, be64(createdAt.UnixNano())...)
	return append(key, be64(contentID)...)
}

func counterKey(contentID int64, typ models.InteractionType) []byte {
	key := append([]byte{prefixCounter}, be64(contentID)...)
	return append(key, []byte(typ)...)
}

func interactionKey(userID, contentID int64, createdAt time.Time) []byte {
	key := append([]byte{prefixInteraction}, be64(userID)...)
	key = append(key, be64(contentID)...)
	return append(key, be64(createdAt.UnixNano())...)
}

func interactionPairPrefix(userID, contentID int64) []byte {
	key := append([]byte{prefixInteraction}, be64(userID)...)
	return append(key, be64(contentID)...)
}

func uniqueMarkerKey(userID, contentID int64, typ models.InteractionType) []byte {
	key := append([]byte{prefixUnique}, be64(userID)...)
	key = append(key, be64(contentID)...)
	return append(key, []byte(typ)...)
}

func eventTimeKey(createdAt time.Time, contentID, userID int64) []byte {
	key := append([]byte{prefixEventTime}, be64(createdAt.UnixNano())...)
	key = append(key, be64(contentID)...)
	return append(key, be64(userID)...)
}

func seenRecordKey(userID, contentID int64) []byte {
	key := append([]byte{prefixSeen}, be64(userID)...)
	return append(key, be64(contentID)...)
}

func edgeKey(followerID, followedID int64) []byte {
	key := append([]byte{prefixEdge}, be64(followerID)...)
	return append(key, be64(followedID)...)
}

func edgePrefix(followerID int64) []byte {
	return append([]byte{prefixEdge}, be64(followerID)...)
}

func profileKey(userID int64) []byte {
	return append([]byte{prefixProfile}, be64(userID)...)
}
