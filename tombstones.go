package vecdir

import "github.com/RoaringBitmap/roaring/v2"

// tombstones marks records that are deleted but still physically stored.
// Members are record ordinals. Not safe for concurrent use; the owning
// collection guards it.
type tombstones struct {
	bm *roaring.Bitmap
}

func newTombstones() *tombstones {
	return &tombstones{bm: roaring.New()}
}

// add marks ord and reports whether it was newly added.
func (t *tombstones) add(ord uint32) bool { return t.bm.CheckedAdd(ord) }

// remove clears ord and reports whether it was present.
func (t *tombstones) remove(ord uint32) bool { return t.bm.CheckedRemove(ord) }

func (t *tombstones) contains(ord uint32) bool { return t.bm.Contains(ord) }

func (t *tombstones) len() int { return int(t.bm.GetCardinality()) }

func (t *tombstones) clear() { t.bm.Clear() }
