package remote

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
)

// CreateOrder implements order.Service.
func (c *Client) CreateOrder(ctx context.Context, d order.Draft) (*order.Order, error) {
	data, err := c.do(ctx, request{
		op:       "CreateOrder",
		endpoint: endpointOrderCreate,
		method:   http.MethodPost,
		path:     []string{"orders"},
		body:     encodeDraft(d),
	})
	if err != nil {
		return nil, err
	}
	o, err := decodeOrder(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FetchOrderHistory implements order.Service.
func (c *Client) FetchOrderHistory(ctx context.Context) ([]order.Order, error) {
	data, err := c.do(ctx, request{
		op:       "FetchOrderHistory",
		endpoint: endpointOrderRead,
		method:   http.MethodGet,
		path:     []string{"orders", "history"},
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(data)
}

// FetchOrder implements order.Service.
func (c *Client) FetchOrder(ctx context.Context, id string) (*order.Order, error) {
	data, err := c.do(ctx, request{
		op:       "FetchOrder",
		endpoint: endpointOrderRead,
		method:   http.MethodGet,
		path:     []string{"orders", id},
	})
	if err != nil {
		return nil, err
	}
	o, err := decodeOrder(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindByCode implements promo.Repository.
func (c *Client) FindByCode(ctx context.Context, code string) (*promo.Promo, error) {
	data, err := c.do(ctx, request{
		op:       "FindPromo",
		endpoint: endpointPromo,
		method:   http.MethodGet,
		path:     []string{"promos", code},
	})
	if err != nil {
		return nil, err
	}
	return decodePromo(data)
}
