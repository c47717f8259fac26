package continuous

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idPos struct {
	ID  ProductID
	Pos int
}

func assigned(id ProductID, title string, pos int) AssignedProduct {
	return AssignedProduct{ID: id, Title: title, Position: pos}
}

func ref(id ProductID, title string) ProductRef {
	return ProductRef{ID: id, Title: title}
}

func newTestDraft(maxOrders, offset int, items ...AssignedProduct) *Draft {
	return NewDraft(Overview{
		UserID:                     42,
		MaxOrdersByLevel:           maxOrders,
		StartContinuousOrdersAfter: offset,
		AssignedProducts:           items,
	})
}

func visiblePositions(d *Draft) []idPos {
	var out []idPos
	for _, it := range d.Visible() {
		out = append(out, idPos{ID: it.ID, Pos: it.Position})
	}
	return out
}

func pendingIDs(d *Draft) []ProductID {
	var out []ProductID
	for _, p := range d.PendingAdds() {
		out = append(out, p.ID)
	}
	return out
}

func assertContiguous(t *testing.T, update AssignmentUpdate) {
	t.Helper()

	seen := make(map[ProductID]bool)
	for i, a := range update.AssignedProducts {
		assert.Equal(t, update.StartContinuousOrdersAfter+1+i, a.Position, "position at index %d", i)
		assert.False(t, seen[a.ProductID], "duplicate product %d", a.ProductID)
		seen[a.ProductID] = true
	}
}

func TestDraft_SetOffset_RenumbersPendingInOrder(t *testing.T) {
	tests := []struct {
		name       string
		offset     int
		wantOffset int
	}{
		{name: "zero", offset: 0, wantOffset: 0},
		{name: "inside range", offset: 3, wantOffset: 3},
		{name: "negative clamped", offset: -4, wantOffset: 0},
		{name: "above ceiling clamped", offset: 50, wantOffset: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDraft(10, 0, assigned(1, "A", 1))
			require.NoError(t, d.Insert(ref(5, "E")))
			require.NoError(t, d.Insert(ref(6, "F")))
			require.NoError(t, d.Insert(ref(7, "G")))

			got := d.SetOffset(tt.offset)
			assert.Equal(t, tt.wantOffset, got)
			assert.Equal(t, tt.wantOffset, d.Offset())

			pending := d.PendingAdds()
			require.Len(t, pending, 3)
			for i, p := range pending {
				assert.Equal(t, tt.wantOffset+1+i, p.Position)
			}
			assert.Equal(t, []ProductID{5, 6, 7}, pendingIDs(d))

			confirmed := d.Visible()[0]
			assert.Equal(t, ProductID(1), confirmed.ID)
			assert.Equal(t, 1, confirmed.Position)
		})
	}
}

func TestDraft_SetOffset_DropsOverrides(t *testing.T) {
	d := newTestDraft(6, 0, assigned(1, "A", 1), assigned(2, "B", 2), assigned(3, "C", 3))
	require.NoError(t, d.ReplaceNext(ref(4, "D")))

	_, ok := d.Override(2)
	require.True(t, ok)

	d.SetOffset(1)

	_, ok = d.Override(2)
	assert.False(t, ok)
	_, ok = d.Override(3)
	assert.False(t, ok)
	assert.True(t, d.IsRemoved(1))
}

func TestDraft_Insert_Ceiling(t *testing.T) {
	tests := []struct {
		name      string
		maxOrders int
		offset    int
		existing  int
		wantErr   bool
	}{
		{name: "room left", maxOrders: 5, offset: 0, existing: 4},
		{name: "list full", maxOrders: 5, offset: 0, existing: 5, wantErr: true},
		{name: "offset leaves last slot", maxOrders: 5, offset: 2, existing: 2},
		{name: "offset pushes past ceiling", maxOrders: 5, offset: 3, existing: 2, wantErr: true},
		{name: "zero ceiling", maxOrders: 0, offset: 0, existing: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []AssignedProduct
			for i := 0; i < tt.existing; i++ {
				items = append(items, assigned(ProductID(i+1), "p", tt.offset+1+i))
			}
			d := newTestDraft(tt.maxOrders, tt.offset, items...)
			before := visiblePositions(d)

			err := d.Insert(ref(100, "new"))

			if tt.wantErr {
				require.ErrorIs(t, err, ErrExceedsMaxOrders)
				assert.Equal(t, before, visiblePositions(d))
				assert.Empty(t, d.PendingAdds())
				return
			}

			require.NoError(t, err)
			pending := d.PendingAdds()
			require.Len(t, pending, 1)
			assert.Equal(t, tt.offset+1+tt.existing, pending[0].Position)
		})
	}
}

func TestDraft_Insert_Duplicate(t *testing.T) {
	d := newTestDraft(5, 0, assigned(1, "A", 1))

	err := d.Insert(ref(1, "A"))
	require.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.Empty(t, d.PendingAdds())

	require.NoError(t, d.Insert(ref(2, "B")))
	err = d.Insert(ref(2, "B"))
	require.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.Equal(t, []ProductID{2}, pendingIDs(d))
}

func TestDraft_Insert_AfterRemovingConfirmed(t *testing.T) {
	d := newTestDraft(5, 0, assigned(1, "A", 1))
	require.NoError(t, d.Remove(1))

	require.NoError(t, d.Insert(ref(1, "A")))
	assert.Equal(t, []ProductID{1}, pendingIDs(d))

	payload := d.Payload(0)
	assert.Equal(t, []PositionAssignment{{ProductID: 1, Position: 1}}, payload.AssignedProducts)
}

func TestDraft_Insert_KeepsPrice(t *testing.T) {
	price := decimal.RequireFromString("12.50")
	d := newTestDraft(5, 0)

	require.NoError(t, d.Insert(ProductRef{ID: 9, Title: "Lamp", Price: &price}))

	pending := d.PendingAdds()
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Price)
	assert.True(t, pending[0].Price.Equal(price))
	assert.Equal(t, "Lamp", pending[0].Title)
}

func TestDraft_ReplaceNext_Gap(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		items  []AssignedProduct
		want   []idPos
	}{
		{
			name:   "first slot empty",
			offset: 0,
			items:  []AssignedProduct{assigned(2, "B", 2), assigned(3, "C", 3)},
			want:   []idPos{{ID: 9, Pos: 1}, {ID: 2, Pos: 2}, {ID: 3, Pos: 3}},
		},
		{
			name:   "empty queue after offset",
			offset: 2,
			items:  []AssignedProduct{assigned(4, "X", 4)},
			want:   []idPos{{ID: 9, Pos: 3}, {ID: 4, Pos: 4}},
		},
		{
			name:   "nothing assigned",
			offset: 0,
			want:   []idPos{{ID: 9, Pos: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDraft(6, tt.offset, tt.items...)

			require.NoError(t, d.ReplaceNext(ref(9, "W")))

			assert.Equal(t, tt.want, visiblePositions(d))
			for _, it := range tt.items {
				_, overridden := d.Override(it.ID)
				assert.False(t, overridden)
				assert.False(t, d.IsRemoved(it.ID))
			}
		})
	}
}

func TestDraft_ReplaceNext_Displacement(t *testing.T) {
	const (
		x ProductID = 1
		y ProductID = 2
		z ProductID = 3
		w ProductID = 4
	)
	d := newTestDraft(6, 1, assigned(x, "X", 2), assigned(y, "Y", 3), assigned(z, "Z", 4))

	require.NoError(t, d.ReplaceNext(ref(w, "W")))

	assert.True(t, d.IsRemoved(x))

	pos, ok := d.Override(y)
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	pos, ok = d.Override(z)
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	pending := d.PendingAdds()
	require.Len(t, pending, 1)
	assert.Equal(t, w, pending[0].ID)
	assert.Equal(t, 4, pending[0].Position)

	assert.Equal(t, []idPos{{ID: y, Pos: 2}, {ID: z, Pos: 3}, {ID: w, Pos: 4}}, visiblePositions(d))
}

func TestDraft_ReplaceNext_DisplacesPendingItem(t *testing.T) {
	d := newTestDraft(5, 0)
	require.NoError(t, d.Insert(ref(1, "A")))
	require.NoError(t, d.Insert(ref(2, "B")))

	require.NoError(t, d.ReplaceNext(ref(3, "C")))

	assert.False(t, d.IsRemoved(1), "pending items are dropped, not marked")
	assert.Equal(t, []ProductID{2, 3}, pendingIDs(d))
	assert.Equal(t, []idPos{{ID: 2, Pos: 1}, {ID: 3, Pos: 2}}, visiblePositions(d))
}

func TestDraft_ReplaceNext_ExceedsCeiling(t *testing.T) {
	d := newTestDraft(2, 2, assigned(1, "A", 1), assigned(2, "B", 2))
	before := visiblePositions(d)

	err := d.ReplaceNext(ref(3, "C"))

	require.ErrorIs(t, err, ErrExceedsMaxOrders)
	assert.Equal(t, before, visiblePositions(d))
	assert.False(t, d.HasChanges())
}

func TestDraft_ReplaceNext_ProductAlreadyPendingElsewhere(t *testing.T) {
	d := newTestDraft(6, 0, assigned(1, "A", 1), assigned(2, "B", 2))
	require.NoError(t, d.Insert(ref(3, "C")))
	require.NoError(t, d.Insert(ref(4, "D")))

	require.NoError(t, d.ReplaceNext(ref(3, "C")))

	assert.True(t, d.IsRemoved(1))
	assert.Equal(t, []ProductID{4, 3}, pendingIDs(d))
	assert.Equal(t, []idPos{{ID: 2, Pos: 1}, {ID: 4, Pos: 2}, {ID: 3, Pos: 3}}, visiblePositions(d))
	assertContiguous(t, d.Payload(0))
}

func TestDraft_ReplaceNext_Repeated(t *testing.T) {
	d := newTestDraft(5, 0, assigned(1, "A", 1), assigned(2, "B", 2))
	require.NoError(t, d.Insert(ref(3, "C")))
	require.NoError(t, d.ReplaceNext(ref(4, "D")))

	require.NoError(t, d.ReplaceNext(ref(5, "E")))

	assert.True(t, d.IsRemoved(2))
	assert.Equal(t, []idPos{{ID: 3, Pos: 1}, {ID: 4, Pos: 2}, {ID: 5, Pos: 3}}, visiblePositions(d))
}

func TestDraft_Remove(t *testing.T) {
	t.Run("pending item is deleted outright", func(t *testing.T) {
		d := newTestDraft(5, 0, assigned(1, "A", 1))
		require.NoError(t, d.Insert(ref(2, "B")))

		require.NoError(t, d.Remove(2))

		assert.Empty(t, d.PendingAdds())
		assert.False(t, d.IsRemoved(2))
		assert.Equal(t, []PositionAssignment{{ProductID: 1, Position: 1}}, d.Payload(0).AssignedProducts)
	})

	t.Run("confirmed item is only marked", func(t *testing.T) {
		d := newTestDraft(5, 0, assigned(1, "A", 1), assigned(2, "B", 2))
		require.NoError(t, d.Insert(ref(3, "C")))

		require.NoError(t, d.Remove(1))

		assert.True(t, d.IsRemoved(1))
		assert.Equal(t, []ProductID{3}, pendingIDs(d))
		assert.Equal(t, []PositionAssignment{
			{ProductID: 2, Position: 1},
			{ProductID: 3, Position: 2},
		}, d.Payload(0).AssignedProducts)
	})

	t.Run("no renumbering", func(t *testing.T) {
		d := newTestDraft(5, 0, assigned(1, "A", 1), assigned(2, "B", 2), assigned(3, "C", 3))

		require.NoError(t, d.Remove(2))

		assert.Equal(t, []idPos{{ID: 1, Pos: 1}, {ID: 3, Pos: 3}}, visiblePositions(d))
	})

	t.Run("unknown or already removed", func(t *testing.T) {
		d := newTestDraft(5, 0, assigned(1, "A", 1))

		require.ErrorIs(t, d.Remove(7), ErrNotAssigned)
		require.NoError(t, d.Remove(1))
		require.ErrorIs(t, d.Remove(1), ErrNotAssigned)
	})
}

func TestDraft_Payload_Contiguous(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		build  func(t *testing.T) *Draft
	}{
		{
			name: "gap left by removal",
			build: func(t *testing.T) *Draft {
				d := newTestDraft(10, 0, assigned(1, "A", 1), assigned(2, "B", 2), assigned(3, "C", 3), assigned(4, "D", 4))
				require.NoError(t, d.Remove(2))
				require.NoError(t, d.Insert(ref(5, "E")))
				return d
			},
		},
		{
			name:   "offset differs from draft",
			offset: 3,
			build: func(t *testing.T) *Draft {
				d := newTestDraft(10, 0, assigned(1, "A", 1))
				require.NoError(t, d.Insert(ref(2, "B")))
				return d
			},
		},
		{
			name: "replacements and removals",
			build: func(t *testing.T) *Draft {
				d := newTestDraft(8, 1, assigned(1, "A", 2), assigned(2, "B", 3), assigned(3, "C", 5))
				require.NoError(t, d.ReplaceNext(ref(4, "D")))
				require.NoError(t, d.Insert(ref(5, "E")))
				require.NoError(t, d.Remove(3))
				require.NoError(t, d.ReplaceNext(ref(5, "E")))
				return d
			},
		},
		{
			name: "server added a pending product",
			build: func(t *testing.T) *Draft {
				d := newTestDraft(5, 0, assigned(1, "A", 1))
				require.NoError(t, d.Insert(ref(2, "B")))
				d.Rebase(Overview{
					MaxOrdersByLevel: 5,
					AssignedProducts: []AssignedProduct{assigned(1, "A", 1), assigned(2, "B", 2)},
				})
				return d
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.build(t)

			payload := d.Payload(tt.offset)

			assert.Equal(t, tt.offset, payload.StartContinuousOrdersAfter)
			assert.NotEmpty(t, payload.AssignedProducts)
			assertContiguous(t, payload)
		})
	}
}

func TestDraft_Rebase_KeepsDeltas(t *testing.T) {
	d := newTestDraft(5, 0, assigned(1, "A", 1), assigned(2, "B", 2))
	require.NoError(t, d.Insert(ref(3, "C")))
	require.NoError(t, d.Remove(1))
	d.SetOffset(1)

	d.Rebase(Overview{
		MaxOrdersByLevel:           6,
		StartContinuousOrdersAfter: 0,
		AssignedProducts:           []AssignedProduct{assigned(1, "A", 1), assigned(2, "B", 2), assigned(7, "G", 3)},
	})

	assert.Equal(t, 1, d.Offset(), "edited offset survives a rebase")
	assert.Equal(t, 6, d.MaxOrders())
	assert.True(t, d.IsRemoved(1))
	assert.Equal(t, []ProductID{3}, pendingIDs(d))
	assert.Equal(t, []idPos{{ID: 2, Pos: 2}, {ID: 3, Pos: 2}, {ID: 7, Pos: 3}}, visiblePositions(d))
}

func TestVisibleList(t *testing.T) {
	confirmed := []AssignedProduct{assigned(1, "A", 3), assigned(2, "B", 1), assigned(3, "C", 2)}
	pending := []AssignedProduct{assigned(4, "D", 2)}
	removes := map[ProductID]struct{}{3: {}}
	overrides := map[ProductID]int{1: 5}

	got := VisibleList(confirmed, pending, removes, overrides)

	require.Len(t, got, 3)
	assert.Equal(t, ProductID(2), got[0].ID)
	assert.False(t, got[0].Pending)
	assert.Equal(t, ProductID(4), got[1].ID)
	assert.True(t, got[1].Pending)
	assert.Equal(t, ProductID(1), got[2].ID)
	assert.Equal(t, 5, got[2].Position)

	assert.Equal(t, 3, confirmed[0].Position, "inputs are not mutated")
}

func TestDraft_EndToEndScenario(t *testing.T) {
	d := NewDraft(Overview{
		MaxOrdersByLevel:           5,
		StartContinuousOrdersAfter: 0,
		AssignedProducts: []AssignedProduct{
			{ID: 1, Title: "A", Position: 1},
			{ID: 2, Title: "B", Position: 2},
		},
	})

	require.NoError(t, d.Insert(ref(3, "C")))
	pending := d.PendingAdds()
	require.Len(t, pending, 1)
	assert.Equal(t, ProductID(3), pending[0].ID)
	assert.Equal(t, 3, pending[0].Position)

	require.NoError(t, d.ReplaceNext(ref(4, "D")))

	assert.True(t, d.IsRemoved(1))
	pos, ok := d.Override(2)
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	pos, ok = d.Override(3)
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	assert.Equal(t, []idPos{{ID: 2, Pos: 1}, {ID: 3, Pos: 2}, {ID: 4, Pos: 3}}, visiblePositions(d))
	assert.Equal(t, []PositionAssignment{
		{ProductID: 2, Position: 1},
		{ProductID: 3, Position: 2},
		{ProductID: 4, Position: 3},
	}, d.Payload(0).AssignedProducts)
}

func TestDraft_DiscardRestoresServerState(t *testing.T) {
	d := newTestDraft(5, 1, assigned(1, "A", 2), assigned(2, "B", 3))

	require.NoError(t, d.Insert(ref(3, "C")))
	require.NoError(t, d.Remove(1))
	d.SetOffset(3)

	d.Discard()

	assert.False(t, d.HasChanges())
	assert.Equal(t, 1, d.Offset())
	assert.Empty(t, d.PendingAdds())
	assert.False(t, d.IsRemoved(1))
	assert.Equal(t, []idPos{{1, 2}, {2, 3}}, visiblePositions(d))
}

func TestDraft_CommitPayload_Ceiling(t *testing.T) {
	full := func() *Draft {
		return newTestDraft(5, 0, assigned(1, "A", 1), assigned(2, "B", 2), assigned(3, "C", 3), assigned(4, "D", 4))
	}

	tests := []struct {
		name    string
		offset  int
		wantErr error
	}{
		{name: "fits", offset: 0},
		{name: "last position equals max", offset: 1},
		{name: "positions past max", offset: 4, wantErr: ErrExceedsMaxOrders},
		{name: "offset at max", offset: 5, wantErr: ErrExceedsMaxOrders},
		{name: "offset above max", offset: 6, wantErr: ErrOffsetAboveMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := full()

			update, err := d.CommitPayload(tt.offset)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, update.AssignedProducts)
				return
			}
			require.NoError(t, err)
			require.Len(t, update.AssignedProducts, 4)
			for _, a := range update.AssignedProducts {
				assert.Greater(t, a.Position, tt.offset)
				assert.LessOrEqual(t, a.Position, d.MaxOrders())
			}
		})
	}

	t.Run("empty draft at max", func(t *testing.T) {
		d := newTestDraft(5, 0)

		update, err := d.CommitPayload(5)

		require.NoError(t, err)
		assert.Equal(t, 5, update.StartContinuousOrdersAfter)
		assert.Empty(t, update.AssignedProducts)
	})
}
