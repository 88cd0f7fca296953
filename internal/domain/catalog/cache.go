package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const prefetchConcurrency = 4

// AllCategories is the category that disables category filtering.
const AllCategories = "All"

var defaultCategories = []string{
	AllCategories, "Pizza", "Burgers", "Sushi", "Chinese", "Indian",
	"Mexican", "Thai", "Italian", "Healthy", "Desserts", "Breakfast",
}

// Cache holds fetched restaurant and menu data. It is read-mostly and
// refreshed on demand. Fetch failures leave empty results behind and are
// reported through Err.
type Cache struct {
	svc Service
	lg  *zap.Logger

	mu       sync.RWMutex
	listing  Listing
	search   []Restaurant
	selected *Restaurant
	details  map[string]*Restaurant
	category string
	loading  bool
	err      error
}

// NewCache creates a Cache backed by the given catalog service.
func NewCache(svc Service, lg *zap.Logger) *Cache {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cache{
		svc:      svc,
		lg:       lg,
		details:  make(map[string]*Restaurant),
		category: AllCategories,
	}
}

// Refresh reloads the restaurant listing. On failure the listing is emptied
// and the error is recorded.
func (c *Cache) Refresh(ctx context.Context, f Filters) error {
	c.mu.Lock()
	c.loading = true
	if f.Category == "" && c.category != AllCategories {
		f.Category = c.category
	}
	c.mu.Unlock()

	l, err := c.svc.FetchRestaurants(ctx, f)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.lg.Warn("Fetch restaurants failed", zap.Error(err))
		c.listing = Listing{}
		c.err = err
		return err
	}
	c.listing = *l
	c.err = nil
	return nil
}

// Search replaces the search results with restaurants matching text.
func (c *Cache) Search(ctx context.Context, text string) ([]Restaurant, error) {
	res, err := c.svc.SearchRestaurants(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lg.Warn("Search restaurants failed", zap.String("query", text), zap.Error(err))
		c.search = nil
		c.err = err
		return nil, err
	}
	c.search = res
	c.err = nil
	return slices.Clone(res), nil
}

// Select fetches restaurant details including its menu and makes it the
// selected restaurant. On failure nothing is selected.
func (c *Cache) Select(ctx context.Context, id string) (*Restaurant, error) {
	r, err := c.svc.FetchRestaurant(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lg.Warn("Fetch restaurant failed", zap.String("restaurant_id", id), zap.Error(err))
		c.selected = nil
		c.err = err
		return nil, err
	}
	c.details[r.ID] = r
	c.selected = r
	c.err = nil
	cp := *r
	return &cp, nil
}

// Prefetch loads the menus of the given restaurants concurrently without
// changing the selection. Restaurants already fetched are skipped. The first
// failure cancels the remaining fetches; menus fetched before it are kept.
func (c *Cache) Prefetch(ctx context.Context, ids ...string) error {
	c.mu.RLock()
	var missing []string
	for _, id := range ids {
		if _, ok := c.details[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	c.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for _, id := range missing {
		g.Go(func() error {
			r, err := c.svc.FetchRestaurant(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "prefetch %s", id)
			}
			c.mu.Lock()
			c.details[r.ID] = r
			c.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.lg.Warn("Prefetch menus failed", zap.Error(err))
		return err
	}
	return nil
}

// LookupItem finds a menu item in a previously fetched restaurant.
func (c *Cache) LookupItem(restaurantID, itemID string) (Restaurant, MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.details[restaurantID]
	if !ok {
		return Restaurant{}, MenuItem{}, false
	}
	it, ok := r.Item(itemID)
	return *r, it, ok
}

// ClearSearch drops the current search results.
func (c *Cache) ClearSearch() {
	c.mu.Lock()
	c.search = nil
	c.mu.Unlock()
}

// ClearSelected drops the selected restaurant.
func (c *Cache) ClearSelected() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

// SetCategory selects the category used by subsequent refreshes.
func (c *Cache) SetCategory(category string) {
	c.mu.Lock()
	c.category = category
	c.mu.Unlock()
}

// Category returns the selected category.
func (c *Cache) Category() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.category
}

// Categories returns the categories offered for filtering.
func (c *Cache) Categories() []string {
	return slices.Clone(defaultCategories)
}

func (c *Cache) Restaurants() []Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.listing.Restaurants)
}

func (c *Cache) Featured() []Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.listing.Featured)
}

func (c *Cache) Nearby() []Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.listing.Nearby)
}

func (c *Cache) SearchResults() []Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.search)
}

// Selected returns the selected restaurant, if any.
func (c *Cache) Selected() (Restaurant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return Restaurant{}, false
	}
	return *c.selected, true
}

// Loading reports whether a listing refresh is outstanding.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err returns the error from the most recent failed fetch, or nil.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
