package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const recentTransactions = 10

type Summary struct {
	ActiveItems      int
	TotalStock       int
	LowStockItems    []domain.Item
	PendingRepairs   int
	PendingDisposals int
	PendingTransfers int
	Recent           []domain.Transaction
}

type ReportService struct {
	core
}

func NewReportService(store port.Store, logger *zap.Logger, opts ...Option) *ReportService {
	return &ReportService{core: newCore(store, nil, nil, logger, opts)}
}

func (s *ReportService) Dashboard(ctx context.Context) (result *Summary, err error) {
	ctx, span := s.startSpan(ctx, "report.Dashboard")
	defer func() { endSpan(span, err) }()

	items, err := s.store.ListItems(ctx, port.ItemFilter{ActiveOnly: true})
	if err != nil {
		return nil, s.mapError("dashboard", err)
	}

	summary := &Summary{ActiveItems: len(items), LowStockItems: []domain.Item{}}
	for _, item := range items {
		summary.TotalStock += item.TotalStock()
		if item.IsLowStock() {
			summary.LowStockItems = append(summary.LowStockItems, item)
		}
	}

	repairs, err := s.store.ListRepairTickets(ctx, port.RepairFilter{Status: domain.RepairStatusSent})
	if err != nil {
		return nil, s.mapError("dashboard", err)
	}
	summary.PendingRepairs = len(repairs)

	_, summary.PendingDisposals, err = s.store.ListTransactions(ctx, port.TransactionFilter{
		Kind: domain.KindDispose, Status: domain.StatusPending, Limit: 1,
	})
	if err != nil {
		return nil, s.mapError("dashboard", err)
	}
	_, summary.PendingTransfers, err = s.store.ListTransactions(ctx, port.TransactionFilter{
		Kind: domain.KindTransfer, Status: domain.StatusPending, Limit: 1,
	})
	if err != nil {
		return nil, s.mapError("dashboard", err)
	}

	summary.Recent, _, err = s.store.ListTransactions(ctx, port.TransactionFilter{Limit: recentTransactions})
	if err != nil {
		return nil, s.mapError("dashboard", err)
	}
	return summary, nil
}
