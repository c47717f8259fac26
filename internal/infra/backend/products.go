package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"reseller-panel/internal/stories/products"
)

type productDTO struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Status string          `json:"status"`
}

type productsPageDTO struct {
	Products []productDTO `json:"products"`
	Count    int          `json:"count"`
}

func (d productsPageDTO) ToModel() *products.Page {
	return &products.Page{
		Count: d.Count,
		Products: lo.Map(d.Products, func(p productDTO, _ int) products.Product {
			return products.Product{
				ID:     p.ID,
				Title:  p.Title,
				Price:  p.Price,
				Status: products.Status(p.Status),
			}
		}),
	}
}

func productsQuery(criteria products.Criteria) url.Values {
	q := url.Values{}
	if criteria.Status != "" {
		q.Set("status", string(criteria.Status))
	}
	if criteria.Search != "" {
		q.Set("search", criteria.Search)
	}
	if criteria.MinPrice != nil {
		q.Set("min_price", criteria.MinPrice.String())
	}
	if criteria.MaxPrice != nil {
		q.Set("max_price", criteria.MaxPrice.String())
	}
	q.Set("limit", strconv.Itoa(criteria.Limit))
	q.Set("offset", strconv.Itoa(criteria.Offset))
	if criteria.UserID != nil {
		q.Set("user_id", strconv.FormatInt(*criteria.UserID, 10))
	}
	return q
}

func (c *Client) GetProducts(ctx context.Context, criteria products.Criteria) (*products.Page, error) {
	var dto productsPageDTO
	if err := c.do(ctx, "get_products", http.MethodGet, "/products", productsQuery(criteria), nil, &dto); err != nil {
		return nil, err
	}
	return dto.ToModel(), nil
}
