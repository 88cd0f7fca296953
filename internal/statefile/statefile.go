// Package statefile persists client state between runs as gzip-compressed
// JSON.
package statefile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
)

const version = 1

// State is everything the client restores on start.
type State struct {
	Cart          cart.Snapshot
	Token         string
	ActiveOrderID string
	Delivery      *order.Address
	Addresses     []order.Address
}

// Load reads the state file at path. A missing file yields an empty State.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open state file")
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Save writes s to path atomically.
func Save(path string, s *State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create state dir")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace state file")
	}
	return nil
}

// Write encodes s to w.
func Write(w io.Writer, s *State) error {
	zw := pgzip.NewWriter(w)
	if _, err := zw.Write(encode(s)); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "write state")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "flush state")
	}
	return nil
}

// Read decodes a State from r. The restored cart is validated.
func Read(r io.Reader) (*State, error) {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer func() { _ = zr.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, errors.Wrap(err, "read state")
	}
	s, err := decode(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "decode state")
	}
	if err := s.Cart.Validate(); err != nil {
		return nil, errors.Wrap(err, "restored cart")
	}
	return s, nil
}

func encode(s *State) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Int(version) })
		e.Field("cart", func(e *jx.Encoder) { encodeCart(e, s.Cart) })
		if s.Token != "" {
			e.Field("token", func(e *jx.Encoder) { e.Str(s.Token) })
		}
		if s.ActiveOrderID != "" {
			e.Field("activeOrder", func(e *jx.Encoder) { e.Str(s.ActiveOrderID) })
		}
		if s.Delivery != nil {
			e.Field("delivery", func(e *jx.Encoder) { encodeAddress(e, *s.Delivery) })
		}
		e.Field("addresses", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, a := range s.Addresses {
					encodeAddress(e, a)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeCart(e *jx.Encoder, c cart.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		if c.Restaurant != nil {
			e.Field("restaurant", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(c.Restaurant.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(c.Restaurant.Name) })
				})
			})
		}
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range c.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("item", func(e *jx.Encoder) { e.Str(l.ItemID) })
						e.Field("restaurant", func(e *jx.Encoder) { e.Str(l.RestaurantID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Str(l.UnitPrice.String()) })
					})
				}
			})
		})
		if c.PromoCode != "" {
			e.Field("promoCode", func(e *jx.Encoder) { e.Str(c.PromoCode) })
			e.Field("promoDiscount", func(e *jx.Encoder) { e.Str(c.PromoDiscount.String()) })
		}
	})
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(a.Label) })
		e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("postcode", func(e *jx.Encoder) { e.Str(a.Postcode) })
	})
}

func decode(data []byte) (*State, error) {
	var s State
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "version":
			var v int
			if v, err = d.Int(); err == nil && v != version {
				err = errors.Errorf("unsupported version %d", v)
			}
		case "cart":
			s.Cart, err = decodeCart(d)
		case "token":
			s.Token, err = d.Str()
		case "activeOrder":
			s.ActiveOrderID, err = d.Str()
		case "delivery":
			var a order.Address
			if a, err = decodeAddress(d); err == nil {
				s.Delivery = &a
			}
		case "addresses":
			err = d.Arr(func(d *jx.Decoder) error {
				a, err := decodeAddress(d)
				if err != nil {
					return err
				}
				s.Addresses = append(s.Addresses, a)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func decodeCart(d *jx.Decoder) (cart.Snapshot, error) {
	var c cart.Snapshot
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "restaurant":
			ref := &cart.RestaurantRef{}
			err = d.Obj(func(d *jx.Decoder, key string) (err error) {
				switch key {
				case "id":
					ref.ID, err = d.Str()
				case "name":
					ref.Name, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
			c.Restaurant = ref
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				c.Lines = append(c.Lines, l)
				return nil
			})
		case "promoCode":
			c.PromoCode, err = d.Str()
		case "promoDiscount":
			c.PromoDiscount, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "item":
			l.ItemID, err = d.Str()
		case "restaurant":
			l.RestaurantID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "price":
			l.UnitPrice, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			a.ID, err = d.Str()
		case "label":
			a.Label, err = d.Str()
		case "street":
			a.Street, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "postcode":
			a.Postcode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}
