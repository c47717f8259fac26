package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"reseller-panel/internal/stories/continuous"
)

type assignedProductDTO struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Position int              `json:"position"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type overviewDTO struct {
	UserID                     int64                `json:"user_id"`
	Username                   string               `json:"username"`
	CurrentOrdersMade          int                  `json:"current_orders_made"`
	OrdersReceivedToday        int                  `json:"orders_received_today"`
	MaxOrdersByLevel           int                  `json:"max_orders_by_level"`
	StartContinuousOrdersAfter int                  `json:"start_continuous_orders_after"`
	DailyAvailableOrders       int                  `json:"daily_available_orders"`
	AssignedProducts           []assignedProductDTO `json:"assigned_products"`
}

func (d overviewDTO) ToModel() *continuous.Overview {
	return &continuous.Overview{
		UserID:                     d.UserID,
		Username:                   d.Username,
		CurrentOrdersMade:          d.CurrentOrdersMade,
		OrdersReceivedToday:        d.OrdersReceivedToday,
		MaxOrdersByLevel:           d.MaxOrdersByLevel,
		StartContinuousOrdersAfter: d.StartContinuousOrdersAfter,
		DailyAvailableOrders:       d.DailyAvailableOrders,
		AssignedProducts: lo.Map(d.AssignedProducts, func(p assignedProductDTO, _ int) continuous.AssignedProduct {
			return continuous.AssignedProduct{
				ID:       p.ID,
				Title:    p.Title,
				Position: p.Position,
				Price:    p.Price,
			}
		}),
	}
}

type positionDTO struct {
	ProductID int64 `json:"product_id"`
	Position  int   `json:"position"`
}

type updateOverviewRequest struct {
	StartContinuousOrdersAfter int           `json:"start_continuous_orders_after"`
	AssignedProducts           []positionDTO `json:"assigned_products"`
}

func overviewPath(userID int64) string {
	return fmt.Sprintf("/users/%d/orders/overview", userID)
}

func (c *Client) GetUserOrderOverview(ctx context.Context, userID int64) (*continuous.Overview, error) {
	var dto overviewDTO
	if err := c.do(ctx, "get_overview", http.MethodGet, overviewPath(userID), nil, nil, &dto); err != nil {
		return nil, err
	}
	return dto.ToModel(), nil
}

func (c *Client) UpdateUserOrderOverview(ctx context.Context, userID int64, update continuous.AssignmentUpdate) error {
	req := updateOverviewRequest{
		StartContinuousOrdersAfter: update.StartContinuousOrdersAfter,
		AssignedProducts: lo.Map(update.AssignedProducts, func(a continuous.PositionAssignment, _ int) positionDTO {
			return positionDTO{ProductID: a.ProductID, Position: a.Position}
		}),
	}
	return c.do(ctx, "update_overview", http.MethodPut, overviewPath(userID), nil, req, nil)
}

func (c *Client) ResetUserContinuousOrders(ctx context.Context, userID int64) error {
	path := fmt.Sprintf("/users/%d/orders/continuous/reset", userID)
	return c.do(ctx, "reset_continuous", http.MethodPost, path, nil, nil, nil)
}
