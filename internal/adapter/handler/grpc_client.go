package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// LedgerClient calls stockledger.v1.Ledger over a connection.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// WithBearerToken attaches a token to outgoing calls made with ctx.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) AddStock(ctx context.Context, in *AddStockRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "AddStock", in, opts)
}

func (c *LedgerClient) TransferStock(ctx context.Context, in *TransferStockRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "TransferStock", in, opts)
}

func (c *LedgerClient) ReviewTransfer(ctx context.Context, in *ReviewRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "ReviewTransfer", in, opts)
}

func (c *LedgerClient) RequestDisposal(ctx context.Context, in *DisposalRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "RequestDisposal", in, opts)
}

func (c *LedgerClient) ApproveDisposal(ctx context.Context, in *ReviewRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "ApproveDisposal", in, opts)
}

func (c *LedgerClient) SendForRepair(ctx context.Context, in *SendForRepairRequest, opts ...grpc.CallOption) (*RepairTicketResponse, error) {
	return invoke[RepairTicketResponse](ctx, c.cc, "SendForRepair", in, opts)
}

func (c *LedgerClient) ReturnFromRepair(ctx context.Context, in *ReturnFromRepairRequest, opts ...grpc.CallOption) (*RepairTicketResponse, error) {
	return invoke[RepairTicketResponse](ctx, c.cc, "ReturnFromRepair", in, opts)
}

func (c *LedgerClient) GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	return invoke[TransactionResponse](ctx, c.cc, "GetTransaction", in, opts)
}
