package app

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/location"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/internal/remote"
	"github.com/xenking/foodcart/internal/statefile"
	"github.com/xenking/foodcart/pkg/health"
	"github.com/xenking/foodcart/pkg/roundtrip"
)

// Run creates all dependencies, restores saved state, runs the console and
// the order tracker, and saves state on exit. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, in io.Reader, out io.Writer) error {
	lg.Info("Initializing", zap.String("api_url", cfg.APIURL))
	ctx = zctx.Base(ctx, lg)

	metrics, err := NewMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	state := &statefile.State{}
	if cfg.StateFile != "" {
		if state, err = statefile.Load(cfg.StateFile); err != nil {
			// A corrupt state file must not lock the user out.
			lg.Warn("Ignoring state file", zap.String("path", cfg.StateFile), zap.Error(err))
			state = &statefile.State{}
		}
	}

	// The transport needs the session for the bearer token and the session
	// needs the client, so the token is read through a closure.
	var sess *session.Store
	transport := otelhttp.NewTransport(
		roundtrip.Wrap(http.DefaultTransport,
			roundtrip.Recovery(),
			roundtrip.RequestID(),
			roundtrip.Throttle(roundtrip.ThrottleConfig{
				Max:    cfg.Throttle.Max,
				Window: cfg.Throttle.Window,
			}),
			roundtrip.LogRequests(),
			roundtrip.Bearer(roundtrip.TokenFunc(func() string { return sess.Token() })),
		),
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)
	client, err := remote.New(cfg.APIURL,
		remote.WithTransport(transport),
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create api client")
	}

	// Engines.
	deliveryFee, serviceFee, err := cfg.Fees()
	if err != nil {
		return err
	}
	sess = session.NewStore(client, lg.Named("session"))
	c := cart.New(cart.Policy{DeliveryFee: deliveryFee, ServiceFee: serviceFee}, cart.WithSnapshot(state.Cart))
	orders := order.NewEngine(client, order.WithLogger(lg.Named("order")))
	book := location.NewBook()
	for _, a := range state.Addresses {
		book.AddSaved(a)
	}
	if state.Delivery != nil {
		book.SetDeliveryAddress(*state.Delivery)
	}

	var promos promo.Repository = client
	if len(cfg.Promo.CodeFiles) > 0 {
		filter, err := promo.LoadCodeFiles(ctx, cfg.Promo.FilterCapacity, cfg.Promo.CodeFiles...)
		if err != nil {
			return errors.Wrap(err, "load promo codes")
		}
		lg.Info("Promo code filter loaded", zap.Uint64("codes", filter.Len()))
		promos = promo.NewFilteredRepository(client, filter)
	}

	monitor := health.NewMonitor()
	monitor.AddCheck("api", cfg.RequestTimeout, client.Ping)
	monitor.Start(ctx, cfg.Health.Interval)
	defer monitor.Stop()

	console := NewConsole(Deps{
		Session: sess,
		Catalog: catalog.NewCache(client, lg.Named("catalog")),
		Cart:    c,
		Orders:  orders,
		Promos:  promo.NewValidator(promos),
		Book:    book,
		Health:  monitor,
		Metrics: metrics,
	}, out, lg.Named("console"))

	restoreSession(ctx, lg, cfg, state, sess, orders)

	tracker := order.NewTracker(orders, cfg.PollInterval, lg.Named("tracker"),
		order.OnStatusChange(func(id string, s order.Status) {
			metrics.StatusUpdate(ctx, s)
			console.printf("\norder %s: %s\n", id, s.Label())
		}),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return tracker.Run(gCtx)
	})
	g.Go(func() error {
		// Leaving the console ends the session.
		defer cancel()
		return console.Run(gCtx, in)
	})
	runErr := g.Wait()

	if cfg.StateFile != "" {
		if err := statefile.Save(cfg.StateFile, snapshotState(sess, c, orders, book)); err != nil {
			lg.Error("Save state", zap.Error(err))
		} else {
			lg.Debug("State saved", zap.String("path", cfg.StateFile))
		}
	}
	return runErr
}

// restoreSession signs in from saved state or configured credentials and
// resumes tracking of the saved active order.
func restoreSession(ctx context.Context, lg *zap.Logger, cfg *Config, state *statefile.State, sess *session.Store, orders *order.Engine) {
	switch {
	case state.Token != "":
		sess.SetToken(state.Token)
		if _, err := sess.RefreshProfile(ctx); err != nil {
			lg.Warn("Saved session is no longer valid", zap.Error(err))
			if errors.Is(err, session.ErrNotAuthenticated) {
				sess.Logout()
			}
		}
	case cfg.Email != "":
		if _, err := sess.Login(ctx, cfg.Email, cfg.Password); err != nil {
			lg.Warn("Sign in with configured credentials failed", zap.Error(err))
		}
	}

	if state.ActiveOrderID == "" || !sess.Authenticated() {
		return
	}
	if _, err := orders.Track(ctx, state.ActiveOrderID); err != nil {
		lg.Warn("Resume order tracking failed",
			zap.String("order_id", state.ActiveOrderID),
			zap.Error(err),
		)
	}
}

func snapshotState(sess *session.Store, c *cart.Cart, orders *order.Engine, book *location.Book) *statefile.State {
	s := &statefile.State{
		Cart:      c.Snapshot(),
		Token:     sess.Token(),
		Addresses: book.Saved(),
	}
	if o, ok := orders.ActiveOrder(); ok && !o.Status.Terminal() {
		s.ActiveOrderID = o.ID
	}
	if a, ok := book.DeliveryAddress(); ok {
		s.Delivery = &a
	}
	return s
}
