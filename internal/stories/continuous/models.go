package continuous

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductID = int64

// AssignedProduct is one product occupying one future order slot for a user.
type AssignedProduct struct {
	ID       ProductID
	Title    string
	Position int
	Price    *decimal.Decimal
}

// Overview is the server-owned aggregate for one user's order queue.
type Overview struct {
	UserID                     int64
	Username                   string
	CurrentOrdersMade          int
	OrdersReceivedToday        int
	MaxOrdersByLevel           int
	StartContinuousOrdersAfter int
	DailyAvailableOrders       int
	AssignedProducts           []AssignedProduct
}

// ProductRef is what the operator picked from the catalog.
type ProductRef struct {
	ID    ProductID
	Title string
	Price *decimal.Decimal
}

type PositionAssignment struct {
	ProductID ProductID
	Position  int
}

// AssignmentUpdate is the single batch submitted on commit.
type AssignmentUpdate struct {
	StartContinuousOrdersAfter int
	AssignedProducts           []PositionAssignment
}

// VisibleItem is an entry of the visible list with its effective position.
type VisibleItem struct {
	AssignedProduct
	Pending bool
}

type JournalKind string

const (
	JournalKindCommit JournalKind = "commit"
	JournalKindReset  JournalKind = "reset"
)

// JournalEntry records what a session submitted to the backend.
type JournalEntry struct {
	ID        string
	SessionID string
	UserID    int64
	Kind      JournalKind
	Offset    int
	Items     []PositionAssignment
	CreatedAt time.Time
}
