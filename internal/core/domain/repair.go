package domain

import (
	"fmt"
	"time"
)

type RepairStatus string

const (
	RepairStatusSent     RepairStatus = "sent"
	RepairStatusReturned RepairStatus = "returned"
	RepairStatusLost     RepairStatus = "lost"
)

func ParseRepairStatus(s string) (RepairStatus, error) {
	switch RepairStatus(s) {
	case RepairStatusSent, RepairStatusReturned, RepairStatusLost:
		return RepairStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown repair status %q", ErrInvalidArgument, s)
}

type RepairTicket struct {
	ID           string
	ItemID       string
	LocationID   string
	Quantity     int
	VendorName   string
	SerialNumber string
	Note         string
	PhotoRef     string
	Status       RepairStatus
	SentAt       time.Time
	ReturnedAt   *time.Time
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewRepairTicket(id, itemID, locationID string, quantity int, vendor, serial, createdBy string, now time.Time) (*RepairTicket, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	if vendor == "" {
		return nil, fmt.Errorf("%w: vendor name cannot be empty", ErrInvalidArgument)
	}

	return &RepairTicket{
		ID:           id,
		ItemID:       itemID,
		LocationID:   locationID,
		Quantity:     quantity,
		VendorName:   vendor,
		SerialNumber: serial,
		Status:       RepairStatusSent,
		SentAt:       now,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkReturned closes a sent ticket. Tickets in any other state are reported
// as not found.
func (r *RepairTicket) MarkReturned(at time.Time) error {
	if r.Status != RepairStatusSent {
		return fmt.Errorf("repair ticket %s is %s: %w", r.ID, r.Status, ErrNotFound)
	}
	r.Status = RepairStatusReturned
	r.ReturnedAt = &at
	r.UpdatedAt = at
	return nil
}

// MarkLost is the manual override for stock that never comes back.
func (r *RepairTicket) MarkLost(at time.Time) error {
	if r.Status != RepairStatusSent {
		return fmt.Errorf("repair ticket %s is %s: %w", r.ID, r.Status, ErrNotFound)
	}
	r.Status = RepairStatusLost
	r.UpdatedAt = at
	return nil
}
