package products

import "context"

type (
	Backend interface {
		GetProducts(ctx context.Context, criteria Criteria) (*Page, error)
	}
)
