// Package ring implements the chunk slot ring: a fixed arena of slots that
// doubles as an intrusive recency list.
//
// Every slot owns at most one chunk buffer. Slots are addressed by integer
// index and the prev/next links are stored as indices, so a slot can be
// reused for a different chunk without any pointer surgery:
//
//	head (MRU)                              tail (LRU)
//	   │                                        │
//	   ▼                                        ▼
//	┌──────┐ next ┌──────┐ next ┌──────┐ next ┌──────┐
//	│ s[7] │─────▶│ s[2] │─────▶│ s[9] │─────▶│ s[0] │
//	│      │◀─────│      │◀─────│      │◀─────│      │
//	└──────┘ prev └──────┘ prev └──────┘ prev └──────┘
//
// MoveToFront and PopTail are O(1). The ring is not safe for concurrent use.
package ring
