package handler

import (
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

// Request and response bodies shared by the HTTP and gRPC adapters.

type MetadataFields struct {
	Note      string `json:"note,omitempty"`
	PhotoRef  string `json:"photoRef,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type AddStockRequest struct {
	ItemID     string `json:"itemId,omitempty"`
	LocationID string `json:"locationId"`
	Quantity   int    `json:"quantity"`
	MetadataFields
}

type TransferStockRequest struct {
	ItemID         string `json:"itemId,omitempty"`
	FromLocationID string `json:"fromLocationId"`
	ToLocationID   string `json:"toLocationId"`
	Quantity       int    `json:"quantity"`
	MetadataFields
}

type DisposalRequest struct {
	ItemID     string `json:"itemId,omitempty"`
	LocationID string `json:"locationId"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
	MetadataFields
}

type ReviewRequest struct {
	TransactionID string `json:"transactionId,omitempty"`
	Approve       bool   `json:"approve"`
}

type SendForRepairRequest struct {
	ItemID       string `json:"itemId,omitempty"`
	LocationID   string `json:"locationId"`
	Quantity     int    `json:"quantity"`
	VendorName   string `json:"vendorName"`
	SerialNumber string `json:"serialNumber,omitempty"`
	MetadataFields
}

type ReturnFromRepairRequest struct {
	TicketID   string `json:"ticketId,omitempty"`
	LocationID string `json:"locationId"`
	MetadataFields
}

type GetTransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

type RegisterItemRequest struct {
	SKU       string `json:"sku"`
	Barcode   string `json:"barcode,omitempty"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Threshold int    `json:"threshold"`
	ImageRef  string `json:"imageRef,omitempty"`
}

type UpdateItemRequest struct {
	Name      *string `json:"name,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Threshold *int    `json:"threshold,omitempty"`
	Status    *string `json:"status,omitempty"`
	ImageRef  *string `json:"imageRef,omitempty"`
}

type AssignBarcodeRequest struct {
	Barcode   string `json:"barcode,omitempty"`
	Overwrite bool   `json:"overwrite"`
}

type LocationRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

type LocationEntryResponse struct {
	LocationID string `json:"locationId"`
	Quantity   int    `json:"quantity"`
}

type ItemResponse struct {
	ID          string                  `json:"id"`
	SKU         string                  `json:"sku"`
	Barcode     string                  `json:"barcode,omitempty"`
	Name        string                  `json:"name"`
	Unit        string                  `json:"unit"`
	Threshold   int                     `json:"threshold"`
	Status      string                  `json:"status"`
	ImageRef    string                  `json:"imageRef,omitempty"`
	Locations   []LocationEntryResponse `json:"locations"`
	TotalStock  int                     `json:"totalStock"`
	StockStatus string                  `json:"stockStatus"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

type LocationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type LocationStockResponse struct {
	Item        ItemResponse `json:"item"`
	Quantity    int          `json:"quantity"`
	StockStatus string       `json:"stockStatus"`
}

type TransactionResponse struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"itemId"`
	Kind           string     `json:"kind"`
	Quantity       int        `json:"quantity"`
	FromLocationID string     `json:"fromLocationId,omitempty"`
	ToLocationID   string     `json:"toLocationId,omitempty"`
	VendorName     string     `json:"vendorName,omitempty"`
	SerialNumber   string     `json:"serialNumber,omitempty"`
	RepairTicketID string     `json:"repairTicketId,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Note           string     `json:"note,omitempty"`
	PhotoRef       string     `json:"photoRef,omitempty"`
	Status         string     `json:"status"`
	ApprovedBy     string     `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	CreatedBy      string     `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type TransactionPage struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

type RepairTicketResponse struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"itemId"`
	LocationID   string     `json:"locationId"`
	Quantity     int        `json:"quantity"`
	VendorName   string     `json:"vendorName"`
	SerialNumber string     `json:"serialNumber,omitempty"`
	Note         string     `json:"note,omitempty"`
	PhotoRef     string     `json:"photoRef,omitempty"`
	Status       string     `json:"status"`
	SentAt       time.Time  `json:"sentAt"`
	ReturnedAt   *time.Time `json:"returnedAt,omitempty"`
	CreatedBy    string     `json:"createdBy"`
}

type SummaryResponse struct {
	ActiveItems      int                   `json:"activeItems"`
	TotalStock       int                   `json:"totalStock"`
	LowStockItems    []ItemResponse        `json:"lowStockItems"`
	PendingRepairs   int                   `json:"pendingRepairs"`
	PendingDisposals int                   `json:"pendingDisposals"`
	PendingTransfers int                   `json:"pendingTransfers"`
	Recent           []TransactionResponse `json:"recent"`
}

func (m MetadataFields) toService(actorID string) service.Metadata {
	return service.Metadata{
		ActorID:   actorID,
		Note:      m.Note,
		PhotoRef:  m.PhotoRef,
		RequestID: m.RequestID,
	}
}

func stockStatus(low bool) string {
	if low {
		return "low"
	}
	return "sufficient"
}

func toItemResponse(item domain.Item) ItemResponse {
	locs := make([]LocationEntryResponse, 0, len(item.Locations))
	for _, e := range item.Locations {
		locs = append(locs, LocationEntryResponse{LocationID: e.LocationID, Quantity: e.Quantity})
	}
	return ItemResponse{
		ID:          item.ID,
		SKU:         item.SKU,
		Barcode:     item.Barcode,
		Name:        item.Name,
		Unit:        item.Unit,
		Threshold:   item.Threshold,
		Status:      string(item.Status),
		ImageRef:    item.ImageRef,
		Locations:   locs,
		TotalStock:  item.TotalStock(),
		StockStatus: stockStatus(item.IsLowStock()),
		Version:     item.Version,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toItemResponses(items []domain.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return out
}

func toLocationResponse(loc domain.Location) LocationResponse {
	return LocationResponse{
		ID:        loc.ID,
		Name:      loc.Name,
		Address:   loc.Address,
		Active:    loc.Active,
		CreatedAt: loc.CreatedAt,
	}
}

func toTransactionResponse(tx domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             tx.ID,
		ItemID:         tx.ItemID,
		Kind:           string(tx.Kind()),
		Quantity:       tx.Quantity,
		FromLocationID: tx.FromLocationID(),
		ToLocationID:   tx.ToLocationID(),
		Note:           tx.Note,
		PhotoRef:       tx.PhotoRef,
		Status:         string(tx.Status),
		ApprovedBy:     tx.ApprovedBy,
		ApprovedAt:     tx.ApprovedAt,
		CreatedBy:      tx.CreatedBy,
		CreatedAt:      tx.CreatedAt,
	}

	switch d := tx.Details.(type) {
	case domain.RepairOutDetails:
		resp.VendorName = d.VendorName
		resp.SerialNumber = d.SerialNumber
		resp.RepairTicketID = d.RepairTicketID
	case domain.RepairInDetails:
		resp.RepairTicketID = d.RepairTicketID
	case domain.DisposeDetails:
		resp.Reason = string(d.Reason)
	}
	return resp
}

func toTransactionResponses(txs []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

func toRepairTicketResponse(t domain.RepairTicket) RepairTicketResponse {
	return RepairTicketResponse{
		ID:           t.ID,
		ItemID:       t.ItemID,
		LocationID:   t.LocationID,
		Quantity:     t.Quantity,
		VendorName:   t.VendorName,
		SerialNumber: t.SerialNumber,
		Note:         t.Note,
		PhotoRef:     t.PhotoRef,
		Status:       string(t.Status),
		SentAt:       t.SentAt,
		ReturnedAt:   t.ReturnedAt,
		CreatedBy:    t.CreatedBy,
	}
}

func toSummaryResponse(s service.Summary) SummaryResponse {
	return SummaryResponse{
		ActiveItems:      s.ActiveItems,
		TotalStock:       s.TotalStock,
		LowStockItems:    toItemResponses(s.LowStockItems),
		PendingRepairs:   s.PendingRepairs,
		PendingDisposals: s.PendingDisposals,
		PendingTransfers: s.PendingTransfers,
		Recent:           toTransactionResponses(s.Recent),
	}
}
