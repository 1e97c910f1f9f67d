package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

const ledgerServiceName = "stockledger.v1.Ledger"

// LedgerServer is the stockledger.v1.Ledger service. Messages travel as JSON.
type LedgerServer interface {
	AddStock(context.Context, *AddStockRequest) (*TransactionResponse, error)
	TransferStock(context.Context, *TransferStockRequest) (*TransactionResponse, error)
	ReviewTransfer(context.Context, *ReviewRequest) (*TransactionResponse, error)
	RequestDisposal(context.Context, *DisposalRequest) (*TransactionResponse, error)
	ApproveDisposal(context.Context, *ReviewRequest) (*TransactionResponse, error)
	SendForRepair(context.Context, *SendForRepairRequest) (*RepairTicketResponse, error)
	ReturnFromRepair(context.Context, *ReturnFromRepairRequest) (*RepairTicketResponse, error)
	GetTransaction(context.Context, *GetTransactionRequest) (*TransactionResponse, error)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("AddStock", LedgerServer.AddStock),
		unaryMethod("TransferStock", LedgerServer.TransferStock),
		unaryMethod("ReviewTransfer", LedgerServer.ReviewTransfer),
		unaryMethod("RequestDisposal", LedgerServer.RequestDisposal),
		unaryMethod("ApproveDisposal", LedgerServer.ApproveDisposal),
		unaryMethod("SendForRepair", LedgerServer.SendForRepair),
		unaryMethod("ReturnFromRepair", LedgerServer.ReturnFromRepair),
		unaryMethod("GetTransaction", LedgerServer.GetTransaction),
	},
	Streams: []grpc.StreamDesc{},
}

func unaryMethod[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ledgerServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			})
		},
	}
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

type GRPCHandler struct {
	Services
	logger *zap.Logger
}

var _ LedgerServer = (*GRPCHandler)(nil)

func NewGRPCHandler(svc Services, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{Services: svc, logger: logger}
}

// AuthInterceptor reads a bearer token from the "authorization" metadata key
// and stores the caller in the context.
func AuthInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(values[0]), "bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		actor, err := parseToken(secret, strings.TrimSpace(values[0][len("Bearer "):]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(withActor(ctx, actor), req)
	}
}

func (h *GRPCHandler) AddStock(ctx context.Context, req *AddStockRequest) (*TransactionResponse, error) {
	actor, err := grpcActor(ctx, false)
	if err != nil {
		return nil, err
	}
	tx, err := h.Ledger.AddStock(ctx, req.ItemID, req.LocationID, req.Quantity, req.toService(actor.ID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (h *GRPCHandler) TransferStock(ctx context.Context, req *TransferStockRequest) (*TransactionResponse, error) {
	actor, err := grpcActor(ctx, false)
	if err != nil {
		return nil, err
	}
	tx, err := h.Ledger.TransferStock(ctx, req.ItemID, req.FromLocationID, req.ToLocationID, req.Quantity,
		actor.Privileged(), req.toService(actor.ID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (h *GRPCHandler) ReviewTransfer(ctx context.Context, req *ReviewRequest) (*TransactionResponse, error) {
	actor, err := grpcActor(ctx, true)
	if err != nil {
		return nil, err
	}
	tx, err := h.Ledger.ReviewTransfer(ctx, req.TransactionID, req.Approve, actor.ID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (h *GRPCHandler) RequestDisposal(ctx context.Context, req *DisposalRequest) (*TransactionResponse, error) {
	actor, err := grpcActor(ctx, false)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseDisposalReason(req.Reason)
	if err != nil {
		return nil, h.toStatus(err)
	}
	tx, err := h.Ledger.RequestDisposal(ctx, req.ItemID, req.LocationID, req.Quantity, reason, req.toService(actor.ID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (h *GRPCHandler) ApproveDisposal(ctx context.Context, req *ReviewRequest) (*TransactionResponse, error) {
	actor, err := grpcActor(ctx, true)
	if err != nil {
		return nil, err
	}
	tx, err := h.Ledger.ApproveDisposal(ctx, req.TransactionID, req.Approve, actor.ID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func (h *GRPCHandler) SendForRepair(ctx context.Context, req *SendForRepairRequest) (*RepairTicketResponse, error) {
	actor, err := grpcActor(ctx, false)
	if err != nil {
		return nil, err
	}
	ticket, err := h.Repairs.SendForRepair(ctx, req.ItemID, req.LocationID, req.Quantity, req.VendorName,
		req.SerialNumber, req.toService(actor.ID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toRepairTicketResponse(*ticket)
	return &resp, nil
}

func (h *GRPCHandler) ReturnFromRepair(ctx context.Context, req *ReturnFromRepairRequest) (*RepairTicketResponse, error) {
	actor, err := grpcActor(ctx, false)
	if err != nil {
		return nil, err
	}
	ticket, err := h.Repairs.ReturnFromRepair(ctx, req.TicketID, req.LocationID, req.toService(actor.ID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toRepairTicketResponse(*ticket)
	return &resp, nil
}

func (h *GRPCHandler) GetTransaction(ctx context.Context, req *GetTransactionRequest) (*TransactionResponse, error) {
	if _, err := grpcActor(ctx, false); err != nil {
		return nil, err
	}
	tx, err := h.Ledger.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toTransactionResponse(*tx)
	return &resp, nil
}

func grpcActor(ctx context.Context, admin bool) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, status.Error(codes.Unauthenticated, "missing actor")
	}
	if admin && !actor.Privileged() {
		return Actor{}, status.Error(codes.PermissionDenied, "insufficient permissions")
	}
	return actor, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	code, message := grpcCode(err)
	if code == codes.Internal || code == codes.Unavailable {
		h.logger.Warn("rpc failed", zap.String("code", code.String()), zap.Error(err))
	}
	return status.Error(code, message)
}
