package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested restaurant does not exist.
var ErrNotFound = errors.New("restaurant not found")

// MenuItem is a dish offered by a restaurant. Immutable once fetched.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Popular     bool
	Category    string
}

// MenuSection groups menu items under a display category.
type MenuSection struct {
	Category string
	Items    []MenuItem
}

// Restaurant represents a venue listed in the marketplace.
type Restaurant struct {
	ID           string
	Name         string
	Cuisine      string
	Rating       float64
	DeliveryTime string
	DeliveryFee  decimal.Decimal
	Distance     float64
	Image        string
	Menu         []MenuSection
}

// Item looks up a menu item by its identifier.
func (r *Restaurant) Item(id string) (MenuItem, bool) {
	for _, s := range r.Menu {
		for _, it := range s.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return MenuItem{}, false
}

// Filters narrows the restaurant listing.
type Filters struct {
	Category string
	Lat      float64
	Lng      float64
}

// Listing is the result of a restaurant listing request.
type Listing struct {
	Restaurants []Restaurant
	Featured    []Restaurant
	Nearby      []Restaurant
}

// Service defines read operations against the remote catalog.
type Service interface {
	FetchRestaurants(ctx context.Context, f Filters) (*Listing, error)
	SearchRestaurants(ctx context.Context, text string) ([]Restaurant, error)
	FetchRestaurant(ctx context.Context, id string) (*Restaurant, error)
}
