package catalog

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalogService struct {
	listing    *Listing
	search     []Restaurant
	byID       map[string]*Restaurant
	err        error
	lastFilter Filters
}

func (m *mockCatalogService) FetchRestaurants(_ context.Context, f Filters) (*Listing, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return m.listing, nil
}

func (m *mockCatalogService) SearchRestaurants(_ context.Context, _ string) ([]Restaurant, error) {
	return m.search, m.err
}

func (m *mockCatalogService) FetchRestaurant(_ context.Context, id string) (*Restaurant, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

var burgerPlace = Restaurant{
	ID:   "r1",
	Name: "Burger Place",
	Menu: []MenuSection{
		{Category: "Popular", Items: []MenuItem{
			{ID: "m1", Name: "Classic Burger", Price: decimal.RequireFromString("8.99"), Popular: true},
		}},
		{Category: "Sides", Items: []MenuItem{
			{ID: "m6", Name: "Fries", Price: decimal.RequireFromString("3.49")},
		}},
	},
}

func TestCache_Refresh(t *testing.T) {
	svc := &mockCatalogService{listing: &Listing{
		Restaurants: []Restaurant{burgerPlace},
		Featured:    []Restaurant{burgerPlace},
	}}
	c := NewCache(svc, nil)
	c.SetCategory("Burgers")

	require.NoError(t, c.Refresh(context.Background(), Filters{}))

	assert.Equal(t, "Burgers", svc.lastFilter.Category)
	assert.Len(t, c.Restaurants(), 1)
	assert.Len(t, c.Featured(), 1)
	assert.Empty(t, c.Nearby())
	assert.NoError(t, c.Err())
	assert.False(t, c.Loading())
}

func TestCache_RefreshFailureEmptiesResults(t *testing.T) {
	svc := &mockCatalogService{listing: &Listing{Restaurants: []Restaurant{burgerPlace}}}
	c := NewCache(svc, nil)
	require.NoError(t, c.Refresh(context.Background(), Filters{}))

	svc.err = errors.New("offline")
	require.Error(t, c.Refresh(context.Background(), Filters{}))

	assert.Empty(t, c.Restaurants())
	assert.Error(t, c.Err())
}

func TestCache_Search(t *testing.T) {
	svc := &mockCatalogService{search: []Restaurant{burgerPlace}}
	c := NewCache(svc, nil)

	res, err := c.Search(context.Background(), "burg")
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Len(t, c.SearchResults(), 1)

	c.ClearSearch()
	assert.Empty(t, c.SearchResults())
}

func TestCache_SelectAndLookup(t *testing.T) {
	svc := &mockCatalogService{byID: map[string]*Restaurant{"r1": &burgerPlace}}
	c := NewCache(svc, nil)

	_, _, ok := c.LookupItem("r1", "m6")
	assert.False(t, ok, "not fetched yet")

	r, err := c.Select(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Burger Place", r.Name)

	rest, item, ok := c.LookupItem("r1", "m6")
	require.True(t, ok)
	assert.Equal(t, "r1", rest.ID)
	assert.Equal(t, "Fries", item.Name)

	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "r1", sel.ID)

	c.ClearSelected()
	_, ok = c.Selected()
	assert.False(t, ok)
}

func TestCache_SelectFailureClearsSelection(t *testing.T) {
	svc := &mockCatalogService{byID: map[string]*Restaurant{"r1": &burgerPlace}}
	c := NewCache(svc, nil)

	_, err := c.Select(context.Background(), "r1")
	require.NoError(t, err)

	_, err = c.Select(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Err(), ErrNotFound)
	_, ok := c.Selected()
	assert.False(t, ok, "failed select leaves nothing selected")

	_, _, ok = c.LookupItem("r1", "m1")
	assert.True(t, ok, "fetched menus are kept")

	_, err = c.Select(context.Background(), "r1")
	require.NoError(t, err)
	assert.NoError(t, c.Err())
}

func TestCache_Categories(t *testing.T) {
	c := NewCache(&mockCatalogService{}, nil)
	cats := c.Categories()
	assert.Equal(t, AllCategories, cats[0])
	assert.Equal(t, AllCategories, c.Category())
}

func TestCache_Prefetch(t *testing.T) {
	sushi := Restaurant{ID: "r2", Name: "Sushi Bar", Menu: []MenuSection{
		{Category: "Rolls", Items: []MenuItem{{ID: "s1", Name: "Salmon Roll", Price: decimal.RequireFromString("6.50")}}},
	}}
	svc := &mockCatalogService{byID: map[string]*Restaurant{"r1": &burgerPlace, "r2": &sushi}}
	c := NewCache(svc, nil)

	require.NoError(t, c.Prefetch(context.Background(), "r1", "r2", "r1"))

	_, item, ok := c.LookupItem("r2", "s1")
	require.True(t, ok)
	assert.Equal(t, "Salmon Roll", item.Name)
	_, ok = c.Selected()
	assert.False(t, ok, "prefetch must not select")

	err := c.Prefetch(context.Background(), "r1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, ok = c.LookupItem("r1", "m1")
	assert.True(t, ok)
}
