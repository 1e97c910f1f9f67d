package domain

import (
	"fmt"
	"math"
	"time"
)

type ItemStatus string

const (
	ItemStatusActive   ItemStatus = "active"
	ItemStatusInactive ItemStatus = "inactive"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemStatusActive, ItemStatusInactive:
		return ItemStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown item status %q", ErrInvalidArgument, s)
}

// LocationEntry is the quantity of an item held at one location.
type LocationEntry struct {
	LocationID string
	Quantity   int
}

// Delta is a signed quantity change at one location.
type Delta struct {
	LocationID string
	Amount     int
}

type Item struct {
	ID        string
	SKU       string
	Barcode   string
	Name      string
	Unit      string
	Threshold int
	Status    ItemStatus
	ImageRef  string
	Locations []LocationEntry
	Version   int // optimistic locking
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem creates a validated Item with no stock.
func NewItem(id, sku, name, unit string, threshold int, createdBy string, now time.Time) (*Item, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: sku cannot be empty", ErrInvalidArgument)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	}
	if unit == "" {
		return nil, fmt.Errorf("%w: unit cannot be empty", ErrInvalidArgument)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold cannot be negative, got %d", ErrInvalidArgument, threshold)
	}

	return &Item{
		ID:        id,
		SKU:       sku,
		Name:      name,
		Unit:      unit,
		Threshold: threshold,
		Status:    ItemStatusActive,
		Locations: []LocationEntry{},
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a copy that shares no memory with i.
func (i Item) Clone() Item {
	c := i
	c.Locations = make([]LocationEntry, len(i.Locations))
	copy(c.Locations, i.Locations)
	return c
}

// Quantity returns the balance at locationID, zero when there is no entry.
func (i Item) Quantity(locationID string) int {
	if idx := i.entryIndex(locationID); idx >= 0 {
		return i.Locations[idx].Quantity
	}
	return 0
}

// HasEntry reports whether the item has an entry at locationID.
func (i Item) HasEntry(locationID string) bool {
	return i.entryIndex(locationID) >= 0
}

func (i Item) TotalStock() int {
	return total(i.Locations)
}

func (i Item) IsLowStock() bool {
	return i.TotalStock() <= i.Threshold
}

// Apply applies all deltas or none of them. A debit needs an existing entry
// holding at least the debited amount; a credit creates the entry when absent.
func (i *Item) Apply(deltas []Delta) error {
	locations := make([]LocationEntry, len(i.Locations))
	copy(locations, i.Locations)

	for _, d := range deltas {
		if d.Amount == 0 {
			return fmt.Errorf("%w: zero delta at location %s", ErrInvalidArgument, d.LocationID)
		}

		idx := -1
		for n := range locations {
			if locations[n].LocationID == d.LocationID {
				idx = n
				break
			}
		}

		if d.Amount < 0 {
			if idx < 0 || locations[idx].Quantity < -d.Amount {
				available := 0
				if idx >= 0 {
					available = locations[idx].Quantity
				}
				return fmt.Errorf("%w at location %s: have %d, need %d",
					ErrInsufficientStock, d.LocationID, available, -d.Amount)
			}
			locations[idx].Quantity += d.Amount
			continue
		}

		if total(locations) > math.MaxInt-d.Amount {
			return fmt.Errorf("%w: credit of %d at location %s overflows stock", ErrInvalidArgument, d.Amount, d.LocationID)
		}
		if idx >= 0 {
			locations[idx].Quantity += d.Amount
		} else {
			locations = append(locations, LocationEntry{LocationID: d.LocationID, Quantity: d.Amount})
		}
	}

	i.Locations = locations
	return nil
}

func total(locations []LocationEntry) int {
	sum := 0
	for _, loc := range locations {
		sum += loc.Quantity
	}
	return sum
}

// Validate checks the item fields and its location entries.
func (i Item) Validate() error {
	if i.SKU == "" || i.Name == "" || i.Unit == "" {
		return fmt.Errorf("%w: sku, name and unit cannot be empty", ErrInvalidArgument)
	}
	if i.Threshold < 0 {
		return fmt.Errorf("%w: threshold cannot be negative", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(i.Locations))
	for _, loc := range i.Locations {
		if loc.Quantity < 0 {
			return fmt.Errorf("%w: negative quantity %d at location %s", ErrInvalidArgument, loc.Quantity, loc.LocationID)
		}
		if _, dup := seen[loc.LocationID]; dup {
			return fmt.Errorf("%w: duplicate entry for location %s", ErrInvalidArgument, loc.LocationID)
		}
		seen[loc.LocationID] = struct{}{}
	}
	return nil
}

func (i Item) entryIndex(locationID string) int {
	for n, loc := range i.Locations {
		if loc.LocationID == locationID {
			return n
		}
	}
	return -1
}
