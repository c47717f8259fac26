package continuous

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Draft is the local, uncommitted overlay of adds, removes and position
// overrides on top of the confirmed assignment list. It is not safe for
// concurrent use; Service serializes access per session.
type Draft struct {
	confirmed   []AssignedProduct
	baseOffset  int
	offset      int
	offsetDirty bool
	maxOrders   int

	pendingAdds    []AssignedProduct
	pendingRemoves map[ProductID]struct{}
	overrides      map[ProductID]int
}

func NewDraft(ov Overview) *Draft {
	d := &Draft{
		confirmed:  cloneProducts(ov.AssignedProducts),
		baseOffset: ov.StartContinuousOrdersAfter,
		offset:     ov.StartContinuousOrdersAfter,
		maxOrders:  ov.MaxOrdersByLevel,
	}
	d.resetDeltas()
	return d
}

func (d *Draft) resetDeltas() {
	d.pendingAdds = nil
	d.pendingRemoves = make(map[ProductID]struct{})
	d.overrides = make(map[ProductID]int)
	d.offsetDirty = false
}

// Discard drops every pending delta and restores the server offset.
func (d *Draft) Discard() {
	d.resetDeltas()
	d.offset = d.baseOffset
}

func (d *Draft) Offset() int {
	return d.offset
}

func (d *Draft) MaxOrders() int {
	return d.maxOrders
}

func (d *Draft) HasChanges() bool {
	return len(d.pendingAdds) > 0 || len(d.pendingRemoves) > 0 || len(d.overrides) > 0
}

// PendingAdds returns a copy of the pending additions in insertion order.
func (d *Draft) PendingAdds() []AssignedProduct {
	return cloneProducts(d.pendingAdds)
}

func (d *Draft) IsRemoved(id ProductID) bool {
	_, ok := d.pendingRemoves[id]
	return ok
}

// Override returns the pending position override for id, if any.
func (d *Draft) Override(id ProductID) (int, bool) {
	pos, ok := d.overrides[id]
	return pos, ok
}

// Rebase swaps the confirmed baseline for a fresh server snapshot. Pending
// deltas are kept; the offset is taken from the snapshot unless the operator
// has edited it.
func (d *Draft) Rebase(ov Overview) {
	d.confirmed = cloneProducts(ov.AssignedProducts)
	d.maxOrders = ov.MaxOrdersByLevel
	d.baseOffset = ov.StartContinuousOrdersAfter
	if !d.offsetDirty {
		d.offset = ov.StartContinuousOrdersAfter
	}
}

// Visible returns the effective, sorted merge of confirmed and pending items.
func (d *Draft) Visible() []VisibleItem {
	return VisibleList(d.confirmed, d.pendingAdds, d.pendingRemoves, d.overrides)
}

// NextPosition is the slot an insertion would take right now.
func (d *Draft) NextPosition() int {
	return d.offset + 1 + len(d.Visible())
}

// VisibleList merges confirmed items minus removed ones with the pending
// additions, applies overrides and sorts by effective position. Confirmed
// items come before pending ones on equal positions.
func VisibleList(
	confirmed, pendingAdds []AssignedProduct,
	removes map[ProductID]struct{},
	overrides map[ProductID]int,
) []VisibleItem {
	items := make([]VisibleItem, 0, len(confirmed)+len(pendingAdds))
	for _, p := range confirmed {
		if _, removed := removes[p.ID]; removed {
			continue
		}
		items = append(items, VisibleItem{AssignedProduct: withOverride(p, overrides)})
	}
	for _, p := range pendingAdds {
		items = append(items, VisibleItem{AssignedProduct: withOverride(p, overrides), Pending: true})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items
}

// SetOffset moves the start offset, clamped to [0, max orders], and renumbers
// the pending additions to the first slots after it. Confirmed positions are
// left alone and all overrides are dropped.
func (d *Draft) SetOffset(s int) int {
	s = max(0, min(s, d.maxOrders))

	d.offset = s
	d.offsetDirty = true
	for i := range d.pendingAdds {
		d.pendingAdds[i].Position = s + 1 + i
	}
	d.overrides = make(map[ProductID]int)

	return s
}

// Insert appends p at the next free trailing slot.
func (d *Draft) Insert(p ProductRef) error {
	visible := d.Visible()

	next := d.offset + 1 + len(visible)
	if next > d.maxOrders {
		return errors.Wrapf(ErrExceedsMaxOrders, "position %d, max %d", next, d.maxOrders)
	}
	if containsID(visible, p.ID) {
		return errors.Wrapf(ErrAlreadyAssigned, "product %d", p.ID)
	}

	d.pendingAdds = append(d.pendingAdds, AssignedProduct{
		ID:       p.ID,
		Title:    p.Title,
		Position: next,
		Price:    p.Price,
	})
	return nil
}

// ReplaceNext forces p into the slot right after the offset. Whatever holds
// that slot leaves the queue, every later item moves back by one and p takes
// the new tail slot. An empty slot simply receives p.
func (d *Draft) ReplaceNext(p ProductRef) error {
	nextPos := d.offset + 1
	if nextPos > d.maxOrders {
		return errors.Wrapf(ErrExceedsMaxOrders, "position %d, max %d", nextPos, d.maxOrders)
	}

	visible := d.Visible()

	// p already queued elsewhere: take it out and close its gap first so the
	// shifted sequence below stays contiguous.
	if existing, ok := lo.Find(visible, func(it VisibleItem) bool { return it.ID == p.ID }); ok && existing.Position != nextPos {
		d.detach(existing)
		for _, it := range visible {
			if it.ID != existing.ID && it.Position > existing.Position {
				d.overrides[it.ID] = it.Position - 1
			}
		}
		visible = d.Visible()
	}

	atNext, occupied := lo.Find(visible, func(it VisibleItem) bool { return it.Position == nextPos })
	if !occupied {
		d.pendingAdds = append(d.pendingAdds, AssignedProduct{
			ID:       p.ID,
			Title:    p.Title,
			Position: nextPos,
			Price:    p.Price,
		})
		delete(d.overrides, p.ID)
		return nil
	}

	if !atNext.Pending {
		d.pendingRemoves[atNext.ID] = struct{}{}
	}
	delete(d.overrides, atNext.ID)

	for _, it := range visible {
		if it.Position > nextPos {
			d.overrides[it.ID] = it.Position - 1
		}
	}

	newLast := d.offset + len(visible)
	d.pendingAdds = lo.Reject(d.pendingAdds, func(a AssignedProduct, _ int) bool {
		return a.ID == p.ID || (atNext.Pending && a.ID == atNext.ID)
	})
	delete(d.overrides, p.ID)
	d.pendingAdds = append(d.pendingAdds, AssignedProduct{
		ID:       p.ID,
		Title:    p.Title,
		Position: newLast,
		Price:    p.Price,
	})

	return nil
}

// Remove excludes id from the visible list. Pending additions are dropped
// outright, confirmed items are only marked; nothing is renumbered.
func (d *Draft) Remove(id ProductID) error {
	if lo.ContainsBy(d.pendingAdds, func(a AssignedProduct) bool { return a.ID == id }) {
		d.pendingAdds = lo.Reject(d.pendingAdds, func(a AssignedProduct, _ int) bool { return a.ID == id })
		delete(d.overrides, id)
		return nil
	}

	if _, removed := d.pendingRemoves[id]; !removed &&
		lo.ContainsBy(d.confirmed, func(a AssignedProduct) bool { return a.ID == id }) {
		d.pendingRemoves[id] = struct{}{}
		delete(d.overrides, id)
		return nil
	}

	return errors.Wrapf(ErrNotAssigned, "product %d", id)
}

// Payload builds the commit batch for offset s: the visible list in order,
// renumbered to s+1, s+2, ... with duplicate ids collapsed.
func (d *Draft) Payload(s int) AssignmentUpdate {
	visible := lo.UniqBy(d.Visible(), func(it VisibleItem) ProductID { return it.ID })

	return AssignmentUpdate{
		StartContinuousOrdersAfter: s,
		AssignedProducts: lo.Map(visible, func(it VisibleItem, i int) PositionAssignment {
			return PositionAssignment{ProductID: it.ID, Position: s + 1 + i}
		}),
	}
}

// CommitPayload checks offset s against the ceiling and builds the batch.
// Every position sent has to fit in [s+1, max orders].
func (d *Draft) CommitPayload(s int) (AssignmentUpdate, error) {
	if s > d.maxOrders {
		return AssignmentUpdate{}, errors.Wrapf(ErrOffsetAboveMax, "offset %d, max %d", s, d.maxOrders)
	}

	update := d.Payload(s)
	if last := s + len(update.AssignedProducts); last > d.maxOrders {
		return AssignmentUpdate{}, errors.Wrapf(ErrExceedsMaxOrders, "position %d, max %d", last, d.maxOrders)
	}
	return update, nil
}

func (d *Draft) detach(it VisibleItem) {
	if it.Pending {
		d.pendingAdds = lo.Reject(d.pendingAdds, func(a AssignedProduct, _ int) bool { return a.ID == it.ID })
	} else {
		d.pendingRemoves[it.ID] = struct{}{}
	}
	delete(d.overrides, it.ID)
}

func withOverride(p AssignedProduct, overrides map[ProductID]int) AssignedProduct {
	if pos, ok := overrides[p.ID]; ok {
		p.Position = pos
	}
	return p
}

func containsID(items []VisibleItem, id ProductID) bool {
	return lo.ContainsBy(items, func(it VisibleItem) bool { return it.ID == id })
}

func cloneProducts(src []AssignedProduct) []AssignedProduct {
	if src == nil {
		return nil
	}
	out := make([]AssignedProduct, len(src))
	copy(out, src)
	return out
}
