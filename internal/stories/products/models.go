package products

import "github.com/shopspring/decimal"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Product struct {
	ID     int64
	Title  string
	Price  decimal.Decimal
	Status Status
}

// Критерии для списка товаров
type Criteria struct {
	Status   Status
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
	Offset   int
	UserID   *int64
}

type Page struct {
	Products []Product
	Count    int
}
