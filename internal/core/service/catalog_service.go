package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const maxBarcodeAttempts = 10

// CatalogService manages items and locations. It never changes item
// locations; that is left to the ledger.
type CatalogService struct {
	core
}

func NewCatalogService(store port.Store, locker port.ItemLocker, logger *zap.Logger, opts ...Option) *CatalogService {
	return &CatalogService{core: newCore(store, locker, nil, logger, opts)}
}

type NewItemInput struct {
	SKU       string
	Barcode   string
	Name      string
	Unit      string
	Threshold int
	ImageRef  string
}

// ItemUpdate carries the fields to change; nil fields are left alone.
type ItemUpdate struct {
	Name      *string
	Unit      *string
	Threshold *int
	Status    *domain.ItemStatus
	ImageRef  *string
}

type LocationUpdate struct {
	Name    *string
	Address *string
	Active  *bool
}

// LocationStock is one item's holding at a location.
type LocationStock struct {
	Item     domain.Item
	Quantity int
	Low      bool
}

func (s *CatalogService) RegisterItem(ctx context.Context, in NewItemInput, actorID string) (result *domain.Item, err error) {
	ctx, span := s.startSpan(ctx, "catalog.RegisterItem", attribute.String("item.sku", in.SKU))
	defer func() { endSpan(span, err) }()

	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}

	item, err := domain.NewItem(s.opts.newID(), strings.TrimSpace(in.SKU), strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Unit), in.Threshold, actorID, s.now())
	if err != nil {
		return nil, err
	}
	item.Barcode = strings.TrimSpace(in.Barcode)
	item.ImageRef = in.ImageRef

	err = s.inTx(ctx, "register item", func(ctx context.Context, r port.Repositories) error {
		if existing, err := r.FindItemBySKU(ctx, item.SKU); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("sku %s: %w", item.SKU, domain.ErrAlreadyExists)
		}
		if existing, err := r.FindItemByBarcode(ctx, item.Barcode); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("barcode %s: %w", item.Barcode, domain.ErrAlreadyExists)
		}
		return r.CreateItem(ctx, *item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item registered", zap.String("item_id", item.ID), zap.String("sku", item.SKU))
	return item, nil
}

func (s *CatalogService) UpdateItem(ctx context.Context, id string, upd ItemUpdate) (result *domain.Item, err error) {
	ctx, span := s.startSpan(ctx, "catalog.UpdateItem", attribute.String("item.id", id))
	defer func() { endSpan(span, err) }()

	if upd.Status != nil {
		if _, err := domain.ParseItemStatus(string(*upd.Status)); err != nil {
			return nil, err
		}
	}

	var item domain.Item
	err = s.withItem(ctx, "update item", id, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, id)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			current.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Unit != nil {
			current.Unit = strings.TrimSpace(*upd.Unit)
		}
		if upd.Threshold != nil {
			current.Threshold = *upd.Threshold
		}
		if upd.Status != nil {
			current.Status = *upd.Status
		}
		if upd.ImageRef != nil {
			current.ImageRef = *upd.ImageRef
		}
		if err := current.Validate(); err != nil {
			return err
		}

		current.UpdatedAt = s.now()
		if err := r.UpdateItem(ctx, *current); err != nil {
			return err
		}
		item = *current
		item.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AssignBarcode sets the item's barcode. An empty barcode asks for a
// generated one. An existing barcode is only replaced when overwrite is set.
func (s *CatalogService) AssignBarcode(ctx context.Context, id, barcode string, overwrite bool) (result *domain.Item, err error) {
	ctx, span := s.startSpan(ctx, "catalog.AssignBarcode", attribute.String("item.id", id))
	defer func() { endSpan(span, err) }()

	barcode = strings.TrimSpace(barcode)

	var item domain.Item
	err = s.withItem(ctx, "assign barcode", id, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, id)
		if err != nil {
			return err
		}
		if current.Barcode != "" && !overwrite {
			return fmt.Errorf("item %s already has barcode %s: %w", id, current.Barcode, domain.ErrAlreadyExists)
		}

		code := barcode
		if code == "" {
			code, err = s.freeBarcode(ctx, r)
			if err != nil {
				return err
			}
		} else if holder, err := r.FindItemByBarcode(ctx, code); err != nil {
			return err
		} else if holder != nil && holder.ID != id {
			return fmt.Errorf("barcode %s: %w", code, domain.ErrAlreadyExists)
		}

		current.Barcode = code
		current.UpdatedAt = s.now()
		if err := r.UpdateItem(ctx, *current); err != nil {
			return err
		}
		item = *current
		item.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("barcode assigned", zap.String("item_id", id), zap.String("barcode", item.Barcode))
	return &item, nil
}

func (s *CatalogService) freeBarcode(ctx context.Context, r port.Repositories) (string, error) {
	for i := 0; i < maxBarcodeAttempts; i++ {
		code := s.opts.newBarcode()
		holder, err := r.FindItemByBarcode(ctx, code)
		if err != nil {
			return "", err
		}
		if holder == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free barcode after %d attempts", maxBarcodeAttempts)
}

func (s *CatalogService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, s.mapError("get item", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (s *CatalogService) GetItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", domain.ErrInvalidArgument)
	}
	item, err := s.store.FindItemByBarcode(ctx, barcode)
	if err != nil {
		return nil, s.mapError("get item by barcode", err)
	}
	if item == nil {
		return nil, fmt.Errorf("barcode %s: %w", barcode, domain.ErrNotFound)
	}
	return item, nil
}

func (s *CatalogService) ListItems(ctx context.Context, activeOnly bool) ([]domain.Item, error) {
	items, err := s.store.ListItems(ctx, port.ItemFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, s.mapError("list items", err)
	}
	return items, nil
}

// StockAtLocation lists active items that hold an entry at the location.
func (s *CatalogService) StockAtLocation(ctx context.Context, locationID string) ([]LocationStock, error) {
	loc, err := s.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, s.mapError("stock at location", err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", locationID, domain.ErrNotFound)
	}

	items, err := s.store.ListItems(ctx, port.ItemFilter{ActiveOnly: true})
	if err != nil {
		return nil, s.mapError("stock at location", err)
	}

	var out []LocationStock
	for _, item := range items {
		if !item.HasEntry(locationID) {
			continue
		}
		out = append(out, LocationStock{
			Item:     item,
			Quantity: item.Quantity(locationID),
			Low:      item.IsLowStock(),
		})
	}
	return out, nil
}

func (s *CatalogService) RegisterLocation(ctx context.Context, name, address, actorID string) (result *domain.Location, err error) {
	ctx, span := s.startSpan(ctx, "catalog.RegisterLocation", attribute.String("location.name", name))
	defer func() { endSpan(span, err) }()

	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}
	loc, err := domain.NewLocation(s.opts.newID(), strings.TrimSpace(name), strings.TrimSpace(address), actorID, s.now())
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, "register location", func(ctx context.Context, r port.Repositories) error {
		existing, err := r.FindLocationByName(ctx, loc.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("location %s: %w", loc.Name, domain.ErrAlreadyExists)
		}
		return r.CreateLocation(ctx, *loc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("location registered", zap.String("location_id", loc.ID), zap.String("name", loc.Name))
	return loc, nil
}

func (s *CatalogService) UpdateLocation(ctx context.Context, id string, upd LocationUpdate) (result *domain.Location, err error) {
	ctx, span := s.startSpan(ctx, "catalog.UpdateLocation", attribute.String("location.id", id))
	defer func() { endSpan(span, err) }()

	var loc domain.Location
	err = s.inTx(ctx, "update location", func(ctx context.Context, r port.Repositories) error {
		current, err := r.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
		}

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidArgument)
			}
			if name != current.Name {
				existing, err := r.FindLocationByName(ctx, name)
				if err != nil {
					return err
				}
				if existing != nil {
					return fmt.Errorf("location %s: %w", name, domain.ErrAlreadyExists)
				}
			}
			current.Name = name
		}
		if upd.Address != nil {
			current.Address = strings.TrimSpace(*upd.Address)
		}
		if upd.Active != nil {
			current.Active = *upd.Active
		}

		current.UpdatedAt = s.now()
		if err := r.UpdateLocation(ctx, *current); err != nil {
			return err
		}
		loc = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *CatalogService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, s.mapError("get location", err)
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
	}
	return loc, nil
}

// ListLocations returns locations sorted by name.
func (s *CatalogService) ListLocations(ctx context.Context, activeOnly bool) ([]domain.Location, error) {
	locs, err := s.store.ListLocations(ctx, activeOnly)
	if err != nil {
		return nil, s.mapError("list locations", err)
	}
	return locs, nil
}
