package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/catalog"
)

// FetchRestaurants implements catalog.Service.
func (c *Client) FetchRestaurants(ctx context.Context, f catalog.Filters) (*catalog.Listing, error) {
	q := url.Values{}
	if f.Category != "" && f.Category != catalog.AllCategories {
		q.Set("category", f.Category)
	}
	if f.Lat != 0 || f.Lng != 0 {
		q.Set("lat", strconv.FormatFloat(f.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(f.Lng, 'f', -1, 64))
	}

	data, err := c.do(ctx, request{
		op:       "FetchRestaurants",
		endpoint: endpointCatalog,
		method:   http.MethodGet,
		path:     []string{"restaurants"},
		query:    q,
	})
	if err != nil {
		return nil, err
	}
	return decodeListing(data)
}

// SearchRestaurants implements catalog.Service.
func (c *Client) SearchRestaurants(ctx context.Context, text string) ([]catalog.Restaurant, error) {
	data, err := c.do(ctx, request{
		op:       "SearchRestaurants",
		endpoint: endpointCatalog,
		method:   http.MethodGet,
		path:     []string{"restaurants", "search"},
		query:    url.Values{"q": {text}},
	})
	if err != nil {
		return nil, err
	}
	l, err := decodeListing(data)
	if err != nil {
		return nil, err
	}
	return l.Restaurants, nil
}

// FetchRestaurant implements catalog.Service.
func (c *Client) FetchRestaurant(ctx context.Context, id string) (*catalog.Restaurant, error) {
	data, err := c.do(ctx, request{
		op:       "FetchRestaurant",
		endpoint: endpointCatalog,
		method:   http.MethodGet,
		path:     []string{"restaurants", id},
	})
	if err != nil {
		return nil, err
	}
	r, err := decodeRestaurant(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &r, nil
}
