package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/location"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
)

type mockAuthenticator struct{}

func (mockAuthenticator) Login(_ context.Context, email, password string) (*session.Credentials, error) {
	if password != "secret" {
		return nil, session.ErrAuth
	}
	return &session.Credentials{
		User:  session.User{ID: "u1", Name: "Alice", Email: email},
		Token: "token-1",
	}, nil
}

func (mockAuthenticator) Register(_ context.Context, p session.Profile) (*session.Credentials, error) {
	return &session.Credentials{User: session.User{ID: "u2", Name: p.Name, Email: p.Email}, Token: "token-2"}, nil
}

func (mockAuthenticator) FetchProfile(context.Context) (*session.User, error) {
	return &session.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}, nil
}

type mockCatalog struct {
	restaurants map[string]*catalog.Restaurant
}

func (m *mockCatalog) FetchRestaurants(context.Context, catalog.Filters) (*catalog.Listing, error) {
	l := &catalog.Listing{}
	for _, r := range m.restaurants {
		l.Restaurants = append(l.Restaurants, *r)
	}
	return l, nil
}

func (m *mockCatalog) SearchRestaurants(context.Context, string) ([]catalog.Restaurant, error) {
	return nil, nil
}

func (m *mockCatalog) FetchRestaurant(_ context.Context, id string) (*catalog.Restaurant, error) {
	r, ok := m.restaurants[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return r, nil
}

type mockOrders struct {
	drafts []order.Draft
}

func (m *mockOrders) CreateOrder(_ context.Context, d order.Draft) (*order.Order, error) {
	m.drafts = append(m.drafts, d)
	return &order.Order{
		ID:              "o1",
		Restaurant:      d.Restaurant,
		Items:           d.Items,
		DeliveryAddress: d.DeliveryAddress,
		PaymentMethod:   d.PaymentMethod,
		Total:           d.Total,
		Status:          order.StatusPending,
	}, nil
}

func (m *mockOrders) FetchOrderHistory(context.Context) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrders) FetchOrder(context.Context, string) (*order.Order, error) {
	return nil, order.ErrOrderRejected
}

type mockPromos map[string]*promo.Promo

func (m mockPromos) FindByCode(_ context.Context, code string) (*promo.Promo, error) {
	p, ok := m[code]
	if !ok {
		return nil, promo.ErrInvalidPromo
	}
	return p, nil
}

var burgerPlace = catalog.Restaurant{
	ID:   "r1",
	Name: "Burger Place",
	Menu: []catalog.MenuSection{
		{Category: "Popular", Items: []catalog.MenuItem{
			{ID: "m1", Name: "Classic Burger", Price: decimal.RequireFromString("8.99"), Popular: true},
		}},
		{Category: "Sides", Items: []catalog.MenuItem{
			{ID: "m6", Name: "Fries", Price: decimal.RequireFromString("3.49")},
		}},
	},
}

type consoleFixture struct {
	console *Console
	cart    *cart.Cart
	orders  *mockOrders
	out     *bytes.Buffer
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()

	metrics, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	svc := &mockOrders{}
	c := cart.New(cart.DefaultPolicy())
	out := &bytes.Buffer{}
	console := NewConsole(Deps{
		Session: session.NewStore(mockAuthenticator{}, nil),
		Catalog: catalog.NewCache(&mockCatalog{restaurants: map[string]*catalog.Restaurant{"r1": &burgerPlace}}, nil),
		Cart:    c,
		Orders:  order.NewEngine(svc),
		Promos: promo.NewValidator(mockPromos{
			"SAVE10": {Code: "SAVE10", Kind: promo.KindPercentage, Value: decimal.NewFromInt(10)},
		}),
		Book:    location.NewBook(),
		Metrics: metrics,
	}, out, nil)

	return &consoleFixture{console: console, cart: c, orders: svc, out: out}
}

func (f *consoleFixture) exec(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	require.NoError(t, f.console.Exec(context.Background(), line), line)
	return f.out.String()
}

func TestConsole_OrderFlow(t *testing.T) {
	f := newConsoleFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.console.Exec(ctx, "login alice@example.com wrong"), session.ErrAuth)
	assert.Contains(t, f.exec(t, "login alice@example.com secret"), "signed in as Alice")

	assert.Contains(t, f.exec(t, "menu r1"), "Classic Burger")
	f.exec(t, "add m1")
	f.exec(t, "add m1")
	assert.Contains(t, f.exec(t, "add m6 r1"), "added Fries")
	assert.Contains(t, f.exec(t, "promo save10"), "promo SAVE10: -2.15")
	require.ErrorIs(t, f.console.Exec(ctx, "promo NOPE"), promo.ErrInvalidPromo)

	s := f.cart.Snapshot()
	assert.Equal(t, 3, s.ItemCount())
	assert.True(t, decimal.RequireFromString("23.30").Equal(s.OrderTotal()), "got %s", s.OrderTotal())

	require.Error(t, f.console.Exec(ctx, "checkout"), "no delivery address yet")
	assert.Contains(t, f.exec(t, `address add Home "1 High St" London N1`), "delivering to Home")

	require.ErrorIs(t, f.console.Exec(ctx, "pay bitcoin"), order.ErrInvalidPaymentMethod)
	f.exec(t, "pay cash")

	out := f.exec(t, "checkout")
	assert.Contains(t, out, "order o1 placed: Pending, total 23.30")
	require.Len(t, f.orders.drafts, 1)
	d := f.orders.drafts[0]
	assert.Equal(t, order.PaymentCash, d.PaymentMethod)
	assert.Equal(t, "1 High St", d.DeliveryAddress.Street)
	assert.Equal(t, "SAVE10", d.PromoCode)
	assert.True(t, f.cart.Snapshot().Empty(), "cart is cleared after checkout")

	assert.Contains(t, f.exec(t, "status"), "Pending")
	f.exec(t, "end")
	assert.Contains(t, f.exec(t, "status"), "no active order")
}

func TestConsole_CheckoutRequiresLogin(t *testing.T) {
	f := newConsoleFixture(t)
	f.exec(t, "menu r1")
	f.exec(t, "add m1")

	err := f.console.Exec(context.Background(), "checkout")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, f.orders.drafts)
	assert.False(t, f.cart.Snapshot().Empty())
}

func TestConsole_CartEdits(t *testing.T) {
	f := newConsoleFixture(t)
	f.exec(t, "menu r1")

	require.Error(t, f.console.Exec(context.Background(), "add missing"))
	f.exec(t, "add m1")
	f.exec(t, "qty m1 4")
	l, ok := f.cart.Snapshot().Line("m1")
	require.True(t, ok)
	assert.Equal(t, 4, l.Quantity)

	require.ErrorIs(t, f.console.Exec(context.Background(), "qty m1 two"), cart.ErrInvalidQuantity)
	f.exec(t, "remove m1")
	l, _ = f.cart.Snapshot().Line("m1")
	assert.Equal(t, 3, l.Quantity)

	f.exec(t, "qty m1 0")
	assert.Equal(t, "cart is empty\n", f.exec(t, "cart"))
}

func TestConsole_AddWithoutSelection(t *testing.T) {
	f := newConsoleFixture(t)
	err := f.console.Exec(context.Background(), "add m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no restaurant selected")
}

func TestConsole_Addresses(t *testing.T) {
	f := newConsoleFixture(t)
	f.exec(t, "address add Home \"1 High St\" London N1")
	f.exec(t, "address add Work \"2 Low St\" London E1")

	saved := f.console.Book.Saved()
	require.Len(t, saved, 2)
	f.exec(t, "address use "+saved[0].ID)
	got, ok := f.console.Book.DeliveryAddress()
	require.True(t, ok)
	assert.Equal(t, "Home", got.Label)

	require.Error(t, f.console.Exec(context.Background(), "address use nope"))
	f.exec(t, "address rm "+saved[1].ID)
	assert.Len(t, f.console.Book.Saved(), 1)

	f.exec(t, "address here -- 51.5 -0.12")
	pos, ok := f.console.Book.Current()
	require.True(t, ok)
	assert.Equal(t, 51.5, pos.Lat)
	assert.Equal(t, -0.12, pos.Lng)
	require.Error(t, f.console.Exec(context.Background(), "address here north 1"))
}

func TestConsole_Run(t *testing.T) {
	f := newConsoleFixture(t)
	in := strings.NewReader("cart\nbogus\n\nquit\ncart\n")

	require.NoError(t, f.console.Run(context.Background(), in))

	out := f.out.String()
	assert.Equal(t, 1, strings.Count(out, "cart is empty"), "commands after quit are not run")
	assert.Contains(t, out, "error: unknown command")
	assert.True(t, strings.HasPrefix(out, "> "))
}

func TestConsole_RunEOF(t *testing.T) {
	f := newConsoleFixture(t)
	require.NoError(t, f.console.Run(context.Background(), strings.NewReader("health\n")))
	assert.Contains(t, f.out.String(), "online")
}

func TestConsole_ExecQuoting(t *testing.T) {
	f := newConsoleFixture(t)
	err := f.console.Exec(context.Background(), `search "unterminated`)
	require.Error(t, err)
	assert.NoError(t, f.console.Exec(context.Background(), "   "))
}

func TestRenderCart(t *testing.T) {
	c := cart.New(cart.DefaultPolicy())
	burger, _ := burgerPlace.Item("m1")
	fries, _ := burgerPlace.Item("m6")
	c.AddItem(burger, burgerPlace)
	c.AddItem(burger, burgerPlace)
	c.AddItem(fries, burgerPlace)
	require.NoError(t, c.ApplyPromo("SAVE10", decimal.RequireFromString("2.15")))

	var buf bytes.Buffer
	renderCart(&buf, c.Snapshot())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "cart_receipt", buf.Bytes())
}
