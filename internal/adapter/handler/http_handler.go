package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200

	idempotencyHeader = "Idempotency-Key"
)

type Services struct {
	Ledger  *service.LedgerService
	Repairs *service.RepairService
	Catalog *service.CatalogService
	Reports *service.ReportService
}

type HTTPHandler struct {
	Services
	secret string
	logger *zap.Logger
}

func NewHTTPHandler(svc Services, jwtSecret string, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{Services: svc, secret: jwtSecret, logger: logger}
}

// Router wires up the HTTP API.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Get("/dashboard", h.dashboard)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.listItems)
			r.Get("/barcode/{barcode}", h.getItemByBarcode)
			r.Get("/{id}", h.getItem)
			r.Post("/{id}/stock", h.addStock)
			r.Post("/{id}/transfers", h.transferStock)
			r.Post("/{id}/disposals", h.requestDisposal)
			r.Post("/{id}/repairs", h.sendForRepair)

			r.With(h.requireAdmin).Post("/", h.registerItem)
			r.With(h.requireAdmin).Patch("/{id}", h.updateItem)
			r.With(h.requireAdmin).Post("/{id}/barcode", h.assignBarcode)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.listLocations)
			r.Get("/{id}", h.getLocation)
			r.Get("/{id}/stock", h.stockAtLocation)

			r.With(h.requireAdmin).Post("/", h.registerLocation)
			r.With(h.requireAdmin).Patch("/{id}", h.updateLocation)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Get("/{id}", h.getTransaction)
		})

		r.Group(func(admin chi.Router) {
			admin.Use(h.requireAdmin)
			admin.Get("/transfers/pending", h.pendingTransfers)
			admin.Get("/disposals/pending", h.pendingDisposals)
			admin.Post("/transfers/{id}/review", h.reviewTransfer)
			admin.Post("/disposals/{id}/review", h.reviewDisposal)
		})

		r.Route("/repairs", func(r chi.Router) {
			r.Get("/", h.listRepairs)
			r.Get("/{id}", h.getRepair)
			r.Post("/{id}/return", h.returnFromRepair)
			r.Post("/{id}/lost", h.markLost)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ledger

func (h *HTTPHandler) addStock(w http.ResponseWriter, r *http.Request) {
	var req AddStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := mustActor(r)
	tx, err := h.Ledger.AddStock(r.Context(), chi.URLParam(r, "id"), req.LocationID, req.Quantity,
		h.metadata(r, req.MetadataFields, actor))
	h.respond(w, http.StatusCreated, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) transferStock(w http.ResponseWriter, r *http.Request) {
	var req TransferStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := mustActor(r)
	tx, err := h.Ledger.TransferStock(r.Context(), chi.URLParam(r, "id"), req.FromLocationID, req.ToLocationID,
		req.Quantity, actor.Privileged(), h.metadata(r, req.MetadataFields, actor))
	h.respond(w, http.StatusCreated, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) requestDisposal(w http.ResponseWriter, r *http.Request) {
	var req DisposalRequest
	if !h.decode(w, r, &req) {
		return
	}
	reason, err := domain.ParseDisposalReason(req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	actor := mustActor(r)
	tx, err := h.Ledger.RequestDisposal(r.Context(), chi.URLParam(r, "id"), req.LocationID, req.Quantity,
		reason, h.metadata(r, req.MetadataFields, actor))
	h.respond(w, http.StatusCreated, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) reviewTransfer(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.Ledger.ReviewTransfer(r.Context(), chi.URLParam(r, "id"), req.Approve, mustActor(r).ID)
	h.respond(w, http.StatusOK, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) reviewDisposal(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.Ledger.ApproveDisposal(r.Context(), chi.URLParam(r, "id"), req.Approve, mustActor(r).ID)
	h.respond(w, http.StatusOK, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, err, func() any { return toTransactionResponse(*tx) })
}

func (h *HTTPHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, page, err := transactionFilter(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	txs, total, err := h.Ledger.ListTransactions(r.Context(), filter)
	h.respond(w, http.StatusOK, err, func() any {
		return TransactionPage{
			Transactions: toTransactionResponses(txs),
			Total:        total,
			Page:         page,
			Limit:        filter.Limit,
		}
	})
}

func (h *HTTPHandler) pendingTransfers(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.ListPendingTransfers(r.Context())
	h.respond(w, http.StatusOK, err, func() any { return toTransactionResponses(txs) })
}

func (h *HTTPHandler) pendingDisposals(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.ListPendingDisposals(r.Context())
	h.respond(w, http.StatusOK, err, func() any { return toTransactionResponses(txs) })
}

// Repairs

func (h *HTTPHandler) sendForRepair(w http.ResponseWriter, r *http.Request) {
	var req SendForRepairRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := mustActor(r)
	ticket, err := h.Repairs.SendForRepair(r.Context(), chi.URLParam(r, "id"), req.LocationID, req.Quantity,
		req.VendorName, req.SerialNumber, h.metadata(r, req.MetadataFields, actor))
	h.respond(w, http.StatusCreated, err, func() any { return toRepairTicketResponse(*ticket) })
}

func (h *HTTPHandler) returnFromRepair(w http.ResponseWriter, r *http.Request) {
	var req ReturnFromRepairRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := mustActor(r)
	ticket, err := h.Repairs.ReturnFromRepair(r.Context(), chi.URLParam(r, "id"), req.LocationID,
		h.metadata(r, req.MetadataFields, actor))
	h.respond(w, http.StatusOK, err, func() any { return toRepairTicketResponse(*ticket) })
}

func (h *HTTPHandler) markLost(w http.ResponseWriter, r *http.Request) {
	var req MetadataFields
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	actor := mustActor(r)
	ticket, err := h.Repairs.MarkLost(r.Context(), chi.URLParam(r, "id"), h.metadata(r, req, actor))
	h.respond(w, http.StatusOK, err, func() any { return toRepairTicketResponse(*ticket) })
}

func (h *HTTPHandler) getRepair(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Repairs.GetRepairTicket(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, err, func() any { return toRepairTicketResponse(*ticket) })
}

func (h *HTTPHandler) listRepairs(w http.ResponseWriter, r *http.Request) {
	filter := port.RepairFilter{ItemID: r.URL.Query().Get("itemId")}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := domain.ParseRepairStatus(s)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		filter.Status = status
	}

	tickets, err := h.Repairs.ListRepairTickets(r.Context(), filter)
	h.respond(w, http.StatusOK, err, func() any {
		out := make([]RepairTicketResponse, 0, len(tickets))
		for _, t := range tickets {
			out = append(out, toRepairTicketResponse(t))
		}
		return out
	})
}

// Catalog

func (h *HTTPHandler) registerItem(w http.ResponseWriter, r *http.Request) {
	var req RegisterItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.Catalog.RegisterItem(r.Context(), service.NewItemInput{
		SKU:       req.SKU,
		Barcode:   req.Barcode,
		Name:      req.Name,
		Unit:      req.Unit,
		Threshold: req.Threshold,
		ImageRef:  req.ImageRef,
	}, mustActor(r).ID)
	h.respond(w, http.StatusCreated, err, func() any { return toItemResponse(*item) })
}

func (h *HTTPHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	upd := service.ItemUpdate{
		Name:      req.Name,
		Unit:      req.Unit,
		Threshold: req.Threshold,
		ImageRef:  req.ImageRef,
	}
	if req.Status != nil {
		status, err := domain.ParseItemStatus(*req.Status)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		upd.Status = &status
	}

	item, err := h.Catalog.UpdateItem(r.Context(), chi.URLParam(r, "id"), upd)
	h.respond(w, http.StatusOK, err, func() any { return toItemResponse(*item) })
}

func (h *HTTPHandler) assignBarcode(w http.ResponseWriter, r *http.Request) {
	var req AssignBarcodeRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	item, err := h.Catalog.AssignBarcode(r.Context(), chi.URLParam(r, "id"), req.Barcode, req.Overwrite)
	h.respond(w, http.StatusOK, err, func() any { return toItemResponse(*item) })
}

func (h *HTTPHandler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, err, func() any { return toItemResponse(*item) })
}

func (h *HTTPHandler) getItemByBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.GetItemByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	h.respond(w, http.StatusOK, err, func() any { return toItemResponse(*item) })
}

func (h *HTTPHandler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListItems(r.Context(), r.URL.Query().Get("active") == "true")
	h.respond(w, http.StatusOK, err, func() any { return toItemResponses(items) })
}

func (h *HTTPHandler) registerLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	var name, address string
	if req.Name != nil {
		name = *req.Name
	}
	if req.Address != nil {
		address = *req.Address
	}
	loc, err := h.Catalog.RegisterLocation(r.Context(), name, address, mustActor(r).ID)
	h.respond(w, http.StatusCreated, err, func() any { return toLocationResponse(*loc) })
}

func (h *HTTPHandler) updateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	loc, err := h.Catalog.UpdateLocation(r.Context(), chi.URLParam(r, "id"), service.LocationUpdate{
		Name:    req.Name,
		Address: req.Address,
		Active:  req.Active,
	})
	h.respond(w, http.StatusOK, err, func() any { return toLocationResponse(*loc) })
}

func (h *HTTPHandler) getLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.Catalog.GetLocation(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, err, func() any { return toLocationResponse(*loc) })
}

func (h *HTTPHandler) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Catalog.ListLocations(r.Context(), r.URL.Query().Get("active") == "true")
	h.respond(w, http.StatusOK, err, func() any {
		out := make([]LocationResponse, 0, len(locs))
		for _, l := range locs {
			out = append(out, toLocationResponse(l))
		}
		return out
	})
}

func (h *HTTPHandler) stockAtLocation(w http.ResponseWriter, r *http.Request) {
	stock, err := h.Catalog.StockAtLocation(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, err, func() any {
		out := make([]LocationStockResponse, 0, len(stock))
		for _, s := range stock {
			out = append(out, LocationStockResponse{
				Item:        toItemResponse(s.Item),
				Quantity:    s.Quantity,
				StockStatus: stockStatus(s.Low),
			})
		}
		return out
	})
}

func (h *HTTPHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reports.Dashboard(r.Context())
	h.respond(w, http.StatusOK, err, func() any { return toSummaryResponse(*summary) })
}

// Helpers

// metadata fills in the actor and falls back to the Idempotency-Key header
// for the request id.
func (h *HTTPHandler) metadata(r *http.Request, m MetadataFields, actor Actor) service.Metadata {
	if m.RequestID == "" {
		m.RequestID = r.Header.Get(idempotencyHeader)
	}
	return m.toService(actor.ID)
}

func mustActor(r *http.Request) Actor {
	actor, _ := ActorFromContext(r.Context())
	return actor
}

func transactionFilter(r *http.Request) (port.TransactionFilter, int, error) {
	q := r.URL.Query()
	filter := port.TransactionFilter{ItemID: q.Get("itemId"), Limit: defaultPageSize}

	if s := q.Get("kind"); s != "" {
		kind, err := domain.ParseTransactionKind(s)
		if err != nil {
			return filter, 0, err
		}
		filter.Kind = kind
	}
	if s := q.Get("status"); s != "" {
		status, err := domain.ParseTransactionStatus(s)
		if err != nil {
			return filter, 0, err
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = queryTime(q.Get("from")); err != nil {
		return filter, 0, err
	}
	if filter.To, err = queryTime(q.Get("to")); err != nil {
		return filter, 0, err
	}

	page := 1
	if s := q.Get("page"); s != "" {
		if page, err = strconv.Atoi(s); err != nil || page < 1 {
			return filter, 0, invalidQuery("page", s)
		}
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 || limit > maxPageSize {
			return filter, 0, invalidQuery("limit", s)
		}
		filter.Limit = limit
	}
	filter.Offset = (page - 1) * filter.Limit

	return filter, page, nil
}

func queryTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalidQuery("time", s)
	}
	return t, nil
}

func invalidQuery(name, value string) error {
	return fmt.Errorf("%w: bad %s %q", domain.ErrInvalidArgument, name, value)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respond writes body() on success or the mapped error otherwise. body is
// only called when err is nil.
func (h *HTTPHandler) respond(w http.ResponseWriter, status int, err error, body func() any) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, status, body())
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	status, message := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	h.writeError(w, status, message)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", zap.Int("status", status), zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
