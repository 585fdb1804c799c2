package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/money"
)

// ProductLookup resolves catalog ids for AddItem.
type ProductLookup interface {
	CartProduct(id string) (Product, bool)
}

// Service exposes cart operations keyed by a client-supplied cart id.
type Service interface {
	Get(ctx context.Context, cartID string) (*View, error)
	AddItem(ctx context.Context, cartID, productID string, quantity int) (*View, error)
	UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) (*View, error)
	RemoveItem(ctx context.Context, cartID, itemID string) (*View, error)
	Clear(ctx context.Context, cartID string) (*View, error)
	Reset(ctx context.Context, cartID string) (*View, error)
}

// View is the cart as returned to API callers.
type View struct {
	ID             string          `json:"id"`
	Items          []Item          `json:"items"`
	ItemsCount     int             `json:"itemsCount"`
	Total          decimal.Decimal `json:"total"`
	TotalFormatted string          `json:"totalFormatted"`
	Currency       string          `json:"currency"`
}

type service struct {
	persistence Persistence
	products    ProductLookup
	currency    string
	logg        *logger.Logger
}

// NewService builds a cart service over the given persistence and catalog.
func NewService(persistence Persistence, products ProductLookup, currency string, logg *logger.Logger) (Service, error) {
	if persistence == nil {
		return nil, errors.New("cart persistence required")
	}
	if products == nil {
		return nil, errors.New("product lookup required")
	}
	return &service{
		persistence: persistence,
		products:    products,
		currency:    strings.ToUpper(strings.TrimSpace(currency)),
		logg:        logg,
	}, nil
}

func (s *service) Get(ctx context.Context, cartID string) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.view(store), nil
}

func (s *service) AddItem(ctx context.Context, cartID, productID string, quantity int) (*View, error) {
	product, ok := s.products.CartProduct(strings.TrimSpace(productID))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	added, err := store.AddItem(ctx, product, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if !added {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product cannot be added to the cart")
	}
	return s.view(store), nil
}

func (s *service) UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	changed, err := store.UpdateQuantity(ctx, itemID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.view(store), nil
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID string) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	removed, err := store.RemoveItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.view(store), nil
}

func (s *service) Clear(ctx context.Context, cartID string) (*View, error) {
	store, err := s.open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := store.ClearCart(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return s.view(store), nil
}

func (s *service) Reset(ctx context.Context, cartID string) (*View, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	store := NewStore(cartID, s.persistence)
	if err := store.ResetCart(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return s.view(store), nil
}

// open loads the cart; an unreadable snapshot is logged and replaced by an empty cart.
func (s *service) open(ctx context.Context, cartID string) (*Store, error) {
	if err := validateCartID(cartID); err != nil {
		return nil, err
	}
	store, err := Open(ctx, cartID, s.persistence)
	if errors.Is(err, ErrUnsupportedSnapshot) || errors.Is(err, ErrCorruptSnapshot) {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "discarding unreadable cart snapshot")
		}
		return NewStore(cartID, s.persistence), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return store, nil
}

func (s *service) view(store *Store) *View {
	items := store.Items()
	if items == nil {
		items = []Item{}
	}
	total := Total(items)
	return &View{
		ID:             store.Key(),
		Items:          items,
		ItemsCount:     Count(items),
		Total:          total,
		TotalFormatted: money.Format(total, s.currency),
		Currency:       s.currency,
	}
}

func validateCartID(cartID string) error {
	if strings.TrimSpace(cartID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	if len(cartID) > 128 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is too long")
	}
	return nil
}
