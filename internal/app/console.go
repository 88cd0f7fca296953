package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/location"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/pkg/health"
)

// errQuit ends the console loop.
var errQuit = errors.New("quit")

// Deps are the engines driven by the console.
type Deps struct {
	Session *session.Store
	Catalog *catalog.Cache
	Cart    *cart.Cart
	Orders  *order.Engine
	Promos  *promo.Validator
	Book    *location.Book
	Health  *health.Monitor
	Metrics *Metrics
}

// Console is a line-oriented driver for the client engines. Each input line
// is one command.
type Console struct {
	Deps
	out     io.Writer
	lg      *zap.Logger
	payment order.PaymentMethod
}

// NewConsole creates a Console writing to out.
func NewConsole(deps Deps, out io.Writer, lg *zap.Logger) *Console {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Console{
		Deps:    deps,
		out:     out,
		lg:      lg,
		payment: order.PaymentCard,
	}
}

// Run reads commands from in until EOF, quit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return errors.Wrap(err, "read input")
					}
				default:
				}
				return nil
			}
			err := c.Exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				c.lg.Warn("Command failed", zap.String("line", line), zap.Error(err))
				c.printf("error: %v\n", err)
			}
			c.prompt()
		}
	}
}

// Exec runs a single command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return errors.Wrap(err, "parse command")
	}
	if len(args) == 0 {
		return nil
	}
	// A fresh tree per line: cobra keeps flag and context state on commands.
	root := c.commands()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (c *Console) prompt() {
	if c.Health != nil && !c.Health.Online() {
		c.printf("[offline] ")
	}
	c.printf("> ")
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodcart",
		Short:         "Food ordering client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(c.out)
	root.SetErr(c.out)

	root.AddCommand(
		c.sessionCommands()...,
	)
	root.AddCommand(
		c.catalogCommands()...,
	)
	root.AddCommand(
		c.cartCommands()...,
	)
	root.AddCommand(
		c.orderCommands()...,
	)
	root.AddCommand(
		c.addressCommand(),
		&cobra.Command{
			Use:   "health",
			Short: "Show API connectivity",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				if c.Health == nil || c.Health.Online() {
					c.printf("online\n")
					return nil
				}
				for _, f := range c.Health.Failures() {
					c.printf("offline: %s: %v\n", f.Check, f.Err)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "Leave the console",
			RunE: func(*cobra.Command, []string) error {
				return errQuit
			},
		},
	)
	return root
}

func (c *Console) sessionCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "login EMAIL PASSWORD",
			Short: "Sign in",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := c.Session.Login(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				c.printf("signed in as %s\n", displayName(*u))
				return nil
			},
		},
		{
			Use:   "register NAME EMAIL PASSWORD [PHONE]",
			Short: "Create an account and sign in",
			Args:  cobra.RangeArgs(3, 4),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := session.Profile{Name: args[0], Email: args[1], Password: args[2]}
				if len(args) == 4 {
					p.Phone = args[3]
				}
				u, err := c.Session.Register(cmd.Context(), p)
				if err != nil {
					return err
				}
				c.printf("welcome, %s\n", displayName(*u))
				return nil
			},
		},
		{
			Use:   "profile",
			Short: "Show the signed-in account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				u, err := c.Session.RefreshProfile(cmd.Context())
				if err != nil {
					return err
				}
				c.printf("%s <%s> %s\n", u.Name, u.Email, u.Phone)
				return nil
			},
		},
		{
			Use:   "logout",
			Short: "Sign out",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				c.Session.Logout()
				c.printf("signed out\n")
				return nil
			},
		},
	}
}

func (c *Console) catalogCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "categories",
			Short: "List restaurant categories",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				current := c.Catalog.Category()
				for _, cat := range c.Catalog.Categories() {
					mark := " "
					if cat == current {
						mark = "*"
					}
					c.printf("%s %s\n", mark, cat)
				}
				return nil
			},
		},
		{
			Use:   "restaurants [CATEGORY]",
			Short: "List restaurants, optionally switching category",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 1 {
					c.Catalog.SetCategory(args[0])
				}
				f := catalog.Filters{}
				if pos, ok := c.Book.Current(); ok {
					f.Lat, f.Lng = pos.Lat, pos.Lng
				}
				if err := c.Catalog.Refresh(cmd.Context(), f); err != nil {
					return err
				}
				c.printRestaurants("Featured", c.Catalog.Featured())
				c.printRestaurants("Nearby", c.Catalog.Nearby())
				c.printRestaurants("All", c.Catalog.Restaurants())

				// Warm up menus of featured places; failures only cost a later fetch.
				ids := make([]string, 0, len(c.Catalog.Featured()))
				for _, r := range c.Catalog.Featured() {
					ids = append(ids, r.ID)
				}
				_ = c.Catalog.Prefetch(cmd.Context(), ids...)
				return nil
			},
		},
		{
			Use:   "search TEXT...",
			Short: "Search restaurants",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := c.Catalog.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if len(res) == 0 {
					c.printf("no matches\n")
					return nil
				}
				c.printRestaurants("Results", res)
				return nil
			},
		},
		{
			Use:   "menu RESTAURANT",
			Short: "Show a restaurant menu and select it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := c.Catalog.Select(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.printf("%s (%s) %s, rating %.1f, delivery %s\n",
					r.Name, r.ID, r.Cuisine, r.Rating, r.DeliveryTime)
				for _, sec := range r.Menu {
					c.printf("[%s]\n", sec.Category)
					for _, it := range sec.Items {
						star := ""
						if it.Popular {
							star = " *"
						}
						c.printf("  %-6s %-30s %8s%s\n", it.ID, it.Name, it.Price.StringFixed(2), star)
					}
				}
				return nil
			},
		},
	}
}

func (c *Console) printRestaurants(title string, rs []catalog.Restaurant) {
	if len(rs) == 0 {
		return
	}
	c.printf("%s:\n", title)
	for _, r := range rs {
		c.printf("  %-6s %-24s %-10s %.1f  %s\n", r.ID, r.Name, r.Cuisine, r.Rating, r.DeliveryTime)
	}
}

func (c *Console) cartCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "add ITEM [RESTAURANT]",
			Short: "Add one unit of a menu item",
			Long:  "Add one unit of a menu item. Adding from another restaurant empties the cart first.",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				restaurantID := ""
				if len(args) == 2 {
					restaurantID = args[1]
				} else if sel, ok := c.Catalog.Selected(); ok {
					restaurantID = sel.ID
				}
				if restaurantID == "" {
					return errors.New("no restaurant selected: use menu RESTAURANT first")
				}
				r, item, ok := c.Catalog.LookupItem(restaurantID, args[0])
				if !ok {
					return errors.Errorf("item %s not found in restaurant %s", args[0], restaurantID)
				}

				before := c.Cart.Snapshot()
				c.Cart.AddItem(item, r)
				c.Metrics.CartMutation(cmd.Context(), "add")
				if before.Restaurant != nil && before.Restaurant.ID != r.ID {
					c.printf("cart from %s replaced\n", before.Restaurant.Name)
				}
				c.printf("added %s\n", item.Name)
				return nil
			},
		},
		{
			Use:   "remove ITEM",
			Short: "Remove one unit of an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c.Cart.RemoveOneUnit(args[0])
				c.Metrics.CartMutation(cmd.Context(), "remove")
				return nil
			},
		},
		{
			Use:   "qty ITEM QUANTITY",
			Short: "Set the quantity of an item; 0 removes it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.Cart.SetQuantityString(args[0], args[1]); err != nil {
					return err
				}
				c.Metrics.CartMutation(cmd.Context(), "set_quantity")
				return nil
			},
		},
		{
			Use:   "clear",
			Short: "Empty the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c.Cart.Clear()
				c.Metrics.CartMutation(cmd.Context(), "clear")
				return nil
			},
		},
		{
			Use:   "promo CODE|remove",
			Short: "Apply or remove a promo code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if args[0] == "remove" {
					c.Cart.RemovePromo()
					c.Metrics.CartMutation(cmd.Context(), "remove_promo")
					return nil
				}
				d, err := c.Promos.Redeem(cmd.Context(), c.Cart, args[0])
				if err != nil {
					return err
				}
				c.Metrics.CartMutation(cmd.Context(), "apply_promo")
				c.printf("promo %s: -%s\n", d.Code, d.Amount.StringFixed(2))
				return nil
			},
		},
		{
			Use:   "cart",
			Short: "Show the cart",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				renderCart(c.out, c.Cart.Snapshot())
				return nil
			},
		},
	}
}

// renderCart prints a receipt-style view of s.
func renderCart(w io.Writer, s cart.Snapshot) {
	if s.Empty() {
		_, _ = fmt.Fprintln(w, "cart is empty")
		return
	}
	_, _ = fmt.Fprintf(w, "Cart: %s (%s)\n", s.Restaurant.Name, s.Restaurant.ID)
	for _, l := range s.Lines {
		_, _ = fmt.Fprintf(w, "  %3d x %-34s %8s\n", l.Quantity, l.Name, l.Total().StringFixed(2))
	}
	row := func(label, amount string) {
		_, _ = fmt.Fprintf(w, "  %-40s %8s\n", label, amount)
	}
	row("Subtotal", s.Subtotal().StringFixed(2))
	row("Delivery fee", s.DeliveryFee.StringFixed(2))
	row("Service fee", s.ServiceFee.StringFixed(2))
	if s.PromoCode != "" {
		row("Promo "+s.PromoCode, "-"+s.PromoDiscount.StringFixed(2))
	}
	row("Total", s.OrderTotal().StringFixed(2))
}

func (c *Console) orderCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "pay METHOD",
			Short: "Choose the payment method (card, apple, google, cash)",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				pm := order.PaymentMethod(args[0])
				if !pm.Valid() {
					return errors.Wrapf(order.ErrInvalidPaymentMethod, "%q", args[0])
				}
				c.payment = pm
				c.printf("paying with %s\n", pm)
				return nil
			},
		},
		{
			Use:   "checkout",
			Short: "Submit the cart as an order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if !c.Session.Authenticated() {
					return session.ErrNotAuthenticated
				}
				addr, ok := c.Book.DeliveryAddress()
				if !ok {
					return errors.New("no delivery address: use address add/use first")
				}
				o, err := c.Orders.Submit(cmd.Context(), c.Cart, addr, c.payment)
				c.Metrics.Submission(cmd.Context(), err)
				if err != nil {
					return err
				}
				c.printf("order %s placed: %s, total %s\n", o.ID, o.Status.Label(), o.Total.StringFixed(2))
				return nil
			},
		},
		{
			Use:   "status",
			Short: "Show the tracked order",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				o, ok := c.Orders.ActiveOrder()
				if !ok {
					c.printf("no active order\n")
					return nil
				}
				c.printOrder(*o)
				if pos, ok := c.Orders.RiderLocation(); ok {
					c.printf("  rider at %.5f,%.5f\n", pos.Lat, pos.Lng)
				}
				return nil
			},
		},
		{
			Use:   "track ORDER",
			Short: "Track an existing order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				o, err := c.Orders.Track(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.printOrder(*o)
				return nil
			},
		},
		{
			Use:   "end",
			Short: "Stop tracking the active order",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				c.Orders.EndTracking()
				return nil
			},
		},
		{
			Use:   "history",
			Short: "List past orders",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.Orders.RefreshHistory(cmd.Context()); err != nil {
					return err
				}
				list := c.Orders.History()
				if len(list) == 0 {
					c.printf("no orders yet\n")
				}
				for _, o := range list {
					c.printOrder(o)
				}
				return nil
			},
		},
	}
}

func (c *Console) printOrder(o order.Order) {
	c.printf("%s %-20s %-16s %8s\n", o.ID, o.Restaurant.Name, o.Status.Label(), o.Total.StringFixed(2))
}

func (c *Console) addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Manage delivery addresses",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved addresses",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				current, hasCurrent := c.Book.DeliveryAddress()
				for _, a := range c.Book.Saved() {
					mark := " "
					if hasCurrent && a.ID == current.ID {
						mark = "*"
					}
					c.printf("%s %s %s: %s, %s %s\n", mark, a.ID, a.Label, a.Street, a.City, a.Postcode)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add LABEL STREET CITY POSTCODE",
			Short: "Save an address and deliver to it",
			Args:  cobra.ExactArgs(4),
			RunE: func(_ *cobra.Command, args []string) error {
				a := c.Book.AddSaved(order.Address{
					Label:    args[0],
					Street:   args[1],
					City:     args[2],
					Postcode: args[3],
				})
				c.Book.SetDeliveryAddress(a)
				c.printf("delivering to %s (%s)\n", a.Label, a.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "use ID",
			Short: "Deliver to a saved address",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				for _, a := range c.Book.Saved() {
					if a.ID == args[0] {
						c.Book.SetDeliveryAddress(a)
						c.printf("delivering to %s\n", a.Label)
						return nil
					}
				}
				return errors.Errorf("address %s not found", args[0])
			},
		},
		&cobra.Command{
			Use:   "rm ID",
			Short: "Forget a saved address",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				c.Book.RemoveSaved(args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "here LAT LNG",
			Short: "Set the current position used for nearby restaurants",
			Long:  "Set the current position used for nearby restaurants. Put -- before negative coordinates.",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				lat, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return errors.Wrap(err, "parse latitude")
				}
				lng, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return errors.Wrap(err, "parse longitude")
				}
				c.Book.SetCurrent(order.Coordinates{Lat: lat, Lng: lng})
				return nil
			},
		},
	)
	return cmd
}

func displayName(u session.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
