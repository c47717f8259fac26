package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"reseller-panel/internal/stories/continuous"
	"reseller-panel/internal/stories/products"
)

// rawInput is operator text that may arrive as a JSON string or number.
// Validation happens in the service so both shapes get the same errors.
type rawInput string

func (r *rawInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = rawInput(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	*r = rawInput(data)
	return nil
}

type openSessionRequest struct {
	UserID int64 `json:"user_id"`
}

type offsetRequest struct {
	Value rawInput `json:"value"`
}

type itemRequest struct {
	ProductID int64            `json:"product_id"`
	Title     string           `json:"title"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

func (r itemRequest) ToModel() continuous.ProductRef {
	return continuous.ProductRef{ID: r.ProductID, Title: r.Title, Price: r.Price}
}

type commitRequest struct {
	StartContinuousOrdersAfter rawInput `json:"start_continuous_orders_after"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type itemResponse struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Position int              `json:"position"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Pending  bool             `json:"pending"`
}

type productResponse struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Status string          `json:"status"`
}

type productsPageResponse struct {
	Products []productResponse `json:"products"`
	Count    int               `json:"count"`
}

type sessionResponse struct {
	SessionID                  string                `json:"session_id"`
	UserID                     int64                 `json:"user_id"`
	Username                   string                `json:"username"`
	CurrentOrdersMade          int                   `json:"current_orders_made"`
	OrdersReceivedToday        int                   `json:"orders_received_today"`
	MaxOrdersByLevel           int                   `json:"max_orders_by_level"`
	DailyAvailableOrders       int                   `json:"daily_available_orders"`
	StartContinuousOrdersAfter int                   `json:"start_continuous_orders_after"`
	NextPosition               int                   `json:"next_position"`
	HasChanges                 bool                  `json:"has_changes"`
	Items                      []itemResponse        `json:"items"`
	Products                   *productsPageResponse `json:"products,omitempty"`
}

type journalEntryResponse struct {
	ID                         string               `json:"id"`
	SessionID                  string               `json:"session_id"`
	Kind                       string               `json:"kind"`
	StartContinuousOrdersAfter int                  `json:"start_continuous_orders_after"`
	Items                      []assignmentResponse `json:"items"`
	CreatedAt                  time.Time            `json:"created_at"`
}

type assignmentResponse struct {
	ProductID int64 `json:"product_id"`
	Position  int   `json:"position"`
}

func newSessionResponse(v *continuous.SessionView) sessionResponse {
	resp := sessionResponse{
		SessionID:                  v.SessionID,
		UserID:                     v.Overview.UserID,
		Username:                   v.Overview.Username,
		CurrentOrdersMade:          v.Overview.CurrentOrdersMade,
		OrdersReceivedToday:        v.Overview.OrdersReceivedToday,
		MaxOrdersByLevel:           v.Overview.MaxOrdersByLevel,
		DailyAvailableOrders:       v.Overview.DailyAvailableOrders,
		StartContinuousOrdersAfter: v.Offset,
		NextPosition:               v.NextPosition,
		HasChanges:                 v.HasChanges,
		Items: lo.Map(v.Visible, func(it continuous.VisibleItem, _ int) itemResponse {
			return itemResponse{
				ID:       it.ID,
				Title:    it.Title,
				Position: it.Position,
				Price:    it.Price,
				Pending:  it.Pending,
			}
		}),
	}
	if v.Products != nil {
		page := newProductsPageResponse(v.Products)
		resp.Products = &page
	}
	return resp
}

func newProductsPageResponse(p *products.Page) productsPageResponse {
	return productsPageResponse{
		Count: p.Count,
		Products: lo.Map(p.Products, func(it products.Product, _ int) productResponse {
			return productResponse{ID: it.ID, Title: it.Title, Price: it.Price, Status: string(it.Status)}
		}),
	}
}

func newJournalResponse(entries []*continuous.JournalEntry) []journalEntryResponse {
	return lo.Map(entries, func(e *continuous.JournalEntry, _ int) journalEntryResponse {
		return journalEntryResponse{
			ID:                         e.ID,
			SessionID:                  e.SessionID,
			Kind:                       string(e.Kind),
			StartContinuousOrdersAfter: e.Offset,
			CreatedAt:                  e.CreatedAt,
			Items: lo.Map(e.Items, func(it continuous.PositionAssignment, _ int) assignmentResponse {
				return assignmentResponse{ProductID: it.ProductID, Position: it.Position}
			}),
		}
	})
}
