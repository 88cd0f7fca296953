package remote

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
)

// The server is lenient about types: IDs come as "_id" or "id", money as
// numbers or strings, and nulls appear for absent values. The decoders below
// accept all of these.

func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return d.Str()
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeFloat(d *jx.Decoder) (float64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, 64)
	default:
		return d.Float64()
	}
}

func decodeInt(d *jx.Decoder) (int, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int()
}

func decodeBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse time %q", s)
	}
	return &t, nil
}

func decodeMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message", "error":
			if msg != "" {
				return d.Skip()
			}
			s, err := decodeString(d)
			msg = s
			return err
		default:
			return d.Skip()
		}
	})
	return msg
}

func decodeUser(d *jx.Decoder) (session.User, error) {
	var u session.User
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			u.ID, err = decodeString(d)
		case "name":
			u.Name, err = decodeString(d)
		case "email":
			u.Email, err = decodeString(d)
		case "phone":
			u.Phone, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return u, errors.Wrap(err, "decode user")
}

func decodeCredentials(data []byte) (*session.Credentials, error) {
	var creds session.Credentials
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "token":
			creds.Token, err = decodeString(d)
		case "user":
			creds.User, err = decodeUser(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode credentials")
	}
	return &creds, nil
}

func decodeMenuItem(d *jx.Decoder, category string) (catalog.MenuItem, error) {
	it := catalog.MenuItem{Category: category}
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			it.ID, err = decodeString(d)
		case "name":
			it.Name, err = decodeString(d)
		case "description":
			it.Description, err = decodeString(d)
		case "price":
			it.Price, err = decodeDecimal(d)
		case "popular":
			it.Popular, err = decodeBool(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func decodeMenuSection(d *jx.Decoder) (catalog.MenuSection, error) {
	var (
		sec catalog.MenuSection
		raw []byte
	)
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "category":
			sec.Category, err = decodeString(d)
		case "items":
			// Items are decoded after the object so that they pick up the
			// category regardless of key order.
			raw, err = d.Raw()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || raw == nil || string(raw) == "null" {
		return sec, err
	}
	err = jx.DecodeBytes(raw).Arr(func(d *jx.Decoder) error {
		it, err := decodeMenuItem(d, sec.Category)
		if err != nil {
			return err
		}
		sec.Items = append(sec.Items, it)
		return nil
	})
	return sec, err
}

func decodeRestaurant(d *jx.Decoder) (catalog.Restaurant, error) {
	var r catalog.Restaurant
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			r.ID, err = decodeString(d)
		case "name":
			r.Name, err = decodeString(d)
		case "cuisine":
			r.Cuisine, err = decodeString(d)
		case "rating":
			r.Rating, err = decodeFloat(d)
		case "deliveryTime":
			r.DeliveryTime, err = decodeString(d)
		case "deliveryFee":
			r.DeliveryFee, err = decodeDecimal(d)
		case "distance":
			r.Distance, err = decodeFloat(d)
		case "image":
			r.Image, err = decodeString(d)
		case "menu":
			err = d.Arr(func(d *jx.Decoder) error {
				sec, err := decodeMenuSection(d)
				if err != nil {
					return err
				}
				r.Menu = append(r.Menu, sec)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return r, errors.Wrap(err, "decode restaurant")
}

func decodeRestaurants(d *jx.Decoder) ([]catalog.Restaurant, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []catalog.Restaurant
	err := d.Arr(func(d *jx.Decoder) error {
		r, err := decodeRestaurant(d)
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// decodeListing accepts either {"restaurants": [...], "featured": [...],
// "nearby": [...]} or a bare array of restaurants.
func decodeListing(data []byte) (*catalog.Listing, error) {
	d := jx.DecodeBytes(data)
	var (
		l   catalog.Listing
		err error
	)
	switch d.Next() {
	case jx.Array:
		l.Restaurants, err = decodeRestaurants(d)
	case jx.Object:
		err = d.Obj(func(d *jx.Decoder, key string) (err error) {
			switch key {
			case "restaurants":
				l.Restaurants, err = decodeRestaurants(d)
			case "featured":
				l.Featured, err = decodeRestaurants(d)
			case "nearby":
				l.Nearby, err = decodeRestaurants(d)
			default:
				err = d.Skip()
			}
			return err
		})
	default:
		err = errors.Errorf("unexpected listing type %s", d.Next())
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode listing")
	}
	return &l, nil
}

func decodeRestaurantRef(d *jx.Decoder) (cart.RestaurantRef, error) {
	var ref cart.RestaurantRef
	if d.Next() != jx.Object {
		id, err := decodeString(d)
		ref.ID = id
		return ref, err
	}
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			ref.ID, err = decodeString(d)
		case "name":
			ref.Name, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return ref, err
}

func decodeOrderItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "menuItem":
			// Either an ID or a populated menu item.
			if d.Next() != jx.Object {
				it.MenuItemID, err = decodeString(d)
				return err
			}
			mi, err := decodeMenuItem(d, "")
			it.MenuItemID = mi.ID
			if it.Name == "" {
				it.Name = mi.Name
			}
			return err
		case "name":
			it.Name, err = decodeString(d)
		case "quantity":
			it.Quantity, err = decodeInt(d)
		case "price":
			it.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	if d.Next() == jx.Null {
		return a, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			a.ID, err = decodeString(d)
		case "label":
			a.Label, err = decodeString(d)
		case "street":
			a.Street, err = decodeString(d)
		case "city":
			a.City, err = decodeString(d)
		case "postcode":
			a.Postcode, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func decodeCoordinates(d *jx.Decoder) (*order.Coordinates, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var c order.Coordinates
	if err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "lat", "latitude":
			c.Lat, err = decodeFloat(d)
		case "lng", "lon", "longitude":
			c.Lng, err = decodeFloat(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode coordinates")
	}
	return &c, nil
}

func decodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "_id", "id":
			o.ID, err = decodeString(d)
		case "restaurant":
			o.Restaurant, err = decodeRestaurantRef(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeOrderItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "deliveryAddress":
			o.DeliveryAddress, err = decodeAddress(d)
		case "paymentMethod":
			var s string
			s, err = decodeString(d)
			o.PaymentMethod = order.PaymentMethod(s)
		case "subtotal":
			o.Subtotal, err = decodeDecimal(d)
		case "deliveryFee":
			o.DeliveryFee, err = decodeDecimal(d)
		case "serviceFee":
			o.ServiceFee, err = decodeDecimal(d)
		case "discount":
			o.Discount, err = decodeDecimal(d)
		case "promoCode":
			o.PromoCode, err = decodeString(d)
		case "total":
			o.Total, err = decodeDecimal(d)
		case "status":
			var s string
			s, err = decodeString(d)
			o.Status = order.Status(s)
		case "createdAt":
			var t *time.Time
			t, err = decodeTime(d)
			if t != nil {
				o.CreatedAt = *t
			}
		case "riderLocation":
			o.RiderLocation, err = decodeCoordinates(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return o, errors.Wrap(err, "decode order")
}

func decodeOrders(data []byte) ([]order.Order, error) {
	d := jx.DecodeBytes(data)
	var out []order.Order
	decodeArr := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			o, err := decodeOrder(d)
			if err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	}
	var err error
	switch d.Next() {
	case jx.Array:
		err = decodeArr(d)
	case jx.Object:
		err = d.Obj(func(d *jx.Decoder, key string) error {
			if key == "orders" {
				return decodeArr(d)
			}
			return d.Skip()
		})
	case jx.Null:
		err = d.Null()
	default:
		err = errors.Errorf("unexpected history type %s", d.Next())
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return out, nil
}

func decodePromo(data []byte) (*promo.Promo, error) {
	var p promo.Promo
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			p.Code, err = decodeString(d)
		case "type", "kind", "discountType":
			var s string
			s, err = decodeString(d)
			p.Kind = promo.Kind(s)
		case "value":
			p.Value, err = decodeDecimal(d)
		case "minItems":
			p.MinItems, err = decodeInt(d)
		case "maxDiscount":
			p.MaxDiscount, err = decodeDecimal(d)
		case "description":
			p.Description, err = decodeString(d)
		case "validFrom":
			p.ValidFrom, err = decodeTime(d)
		case "validUntil":
			p.ValidUntil, err = decodeTime(d)
		case "maxUses":
			p.MaxUses, err = decodeInt(d)
		case "uses":
			p.Uses, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode promo")
	}
	return &p, nil
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeCredentials(email, password string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("email", func(e *jx.Encoder) { e.Str(email) })
		e.Field("password", func(e *jx.Encoder) { e.Str(password) })
	})
	return e.Bytes()
}

func encodeProfile(p session.Profile) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(p.Email) })
		if p.Phone != "" {
			e.Field("phone", func(e *jx.Encoder) { e.Str(p.Phone) })
		}
		e.Field("password", func(e *jx.Encoder) { e.Str(p.Password) })
	})
	return e.Bytes()
}

func encodeDraft(d order.Draft) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("restaurant", func(e *jx.Encoder) { e.Str(d.Restaurant.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range d.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("menuItem", func(e *jx.Encoder) { e.Str(it.MenuItemID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
					})
				}
			})
		})
		e.Field("deliveryAddress", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if d.DeliveryAddress.Label != "" {
					e.Field("label", func(e *jx.Encoder) { e.Str(d.DeliveryAddress.Label) })
				}
				e.Field("street", func(e *jx.Encoder) { e.Str(d.DeliveryAddress.Street) })
				e.Field("city", func(e *jx.Encoder) { e.Str(d.DeliveryAddress.City) })
				e.Field("postcode", func(e *jx.Encoder) { e.Str(d.DeliveryAddress.Postcode) })
			})
		})
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(d.PaymentMethod)) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, d.Subtotal) })
		e.Field("deliveryFee", func(e *jx.Encoder) { encodeDecimal(e, d.DeliveryFee) })
		e.Field("serviceFee", func(e *jx.Encoder) { encodeDecimal(e, d.ServiceFee) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, d.Discount) })
		if d.PromoCode != "" {
			e.Field("promoCode", func(e *jx.Encoder) { e.Str(d.PromoCode) })
		}
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, d.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(d.Status)) })
	})
	return e.Bytes()
}
