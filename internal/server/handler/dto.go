package handler

import (
	"time"

	"github.com/mazadapp/mazad/internal/domain"
)

// Response shapes for the JSON API. Monetary amounts stay in minor units.

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`

	Price         *int64 `json:"price,omitempty"`
	StockQuantity *int   `json:"stock_quantity,omitempty"`

	StartingPrice     *int64     `json:"starting_price,omitempty"`
	CurrentHighestBid *int64     `json:"current_highest_bid,omitempty"`
	AuctionEndTime    *time.Time `json:"auction_end_time,omitempty"`
	ConcludedAt       *time.Time `json:"concluded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Kind:        string(p.Kind),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	switch p.Kind {
	case domain.ProductFixedPrice:
		price := p.Price
		stock := p.StockQuantity
		resp.Price = &price
		resp.StockQuantity = &stock
	case domain.ProductAuction:
		starting := p.StartingPrice
		resp.StartingPrice = &starting
		resp.CurrentHighestBid = p.CurrentHighestBid
		resp.AuctionEndTime = p.AuctionEndTime
		resp.ConcludedAt = p.ConcludedAt
	}
	return resp
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

type bidResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func toBidResponse(b domain.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID,
		ProductID: b.ProductID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt,
	}
}

func toBidResponses(bids []domain.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	TotalAmount   int64               `json:"total_amount"`
	Status        string              `json:"status"`
	PaymentURL    *string             `json:"payment_url,omitempty"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		PaymentURL:    o.PaymentURL,
		TransactionID: o.TransactionID,
		Lines:         lines,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}
