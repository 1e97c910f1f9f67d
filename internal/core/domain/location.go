package domain

import (
	"fmt"
	"time"
)

type Location struct {
	ID        string
	Name      string
	Address   string
	Active    bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewLocation(id, name, address, createdBy string, now time.Time) (*Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: location name cannot be empty", ErrInvalidArgument)
	}

	return &Location{
		ID:        id,
		Name:      name,
		Address:   address,
		Active:    true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
