package grpc

import (
	"context"
	"errors"

	"marquee/internal/orders"
	"marquee/internal/orders/txn"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AgentIDHeader carries the authenticated buyer id set by the gateway.
const AgentIDHeader = "x-agent-id"

// PlaceOrderService defines the behavior needed by the gRPC adapter.
type PlaceOrderService interface {
	Start(ctx context.Context, p orders.StartParams) (txn.Transaction, error)
	Transaction(ctx context.Context, agentID, transactionID string) (txn.Transaction, error)
	AuthorizeSeatReservation(ctx context.Context, agentID, transactionID string, req txn.SeatReservationObject) (txn.AuthorizeAction, error)
	CancelSeatReservationAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error)
	AuthorizeCreditCard(ctx context.Context, agentID, transactionID string, req orders.CreditCardRequest) (txn.AuthorizeAction, error)
	CancelCreditCardAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error)
	AuthorizeMvtk(ctx context.Context, agentID, transactionID string, req txn.MvtkObject) (txn.AuthorizeAction, error)
	CancelMvtkAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error)
	AuthorizeAccount(ctx context.Context, agentID, transactionID string, req txn.AccountObject) (txn.AuthorizeAction, error)
	CancelAccountAuthorization(ctx context.Context, agentID, transactionID, actionID string) (txn.AuthorizeAction, error)
	SetCustomerContact(ctx context.Context, agentID, transactionID string, contact txn.CustomerContact) (txn.CustomerContact, error)
	Confirm(ctx context.Context, agentID, transactionID string) (txn.TransactionResult, error)
}

// PlaceOrderServer adapts PlaceOrderService to gRPC.
type PlaceOrderServer struct {
	service         PlaceOrderService
	maxCountPerUnit int64
}

// NewPlaceOrderServer constructs a PlaceOrderServer. Every seller may start
// at most maxCountPerUnit transactions per admission window.
func NewPlaceOrderServer(svc PlaceOrderService, maxCountPerUnit int64) *PlaceOrderServer {
	return &PlaceOrderServer{service: svc, maxCountPerUnit: maxCountPerUnit}
}

func agentID(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(AgentIDHeader); len(values) > 0 && values[0] != "" {
		return values[0], nil
	}
	return "", status.Error(codes.Unauthenticated, "missing "+AgentIDHeader)
}

func (s *PlaceOrderServer) Start(ctx context.Context, req *StartRequest) (*TransactionResponse, error) {
	id, err := agentID(ctx)
	if err != nil {
		return nil, err
	}
	agent := req.Agent
	agent.ID = id
	t, err := s.service.Start(ctx, orders.StartParams{
		Expires:         req.Expires,
		ScopeKey:        req.Seller.ID,
		MaxCountPerUnit: s.maxCountPerUnit,
		Agent:           agent,
		Seller:          req.Seller,
		PassportToken:   req.PassportToken,
		ClientID:        req.ClientID,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &TransactionResponse{Transaction: t}, nil
}

func (s *PlaceOrderServer) GetTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error) {
	id, err := agentID(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.service.Transaction(ctx, id, req.TransactionID)
	if err != nil {
		return nil, mapError(err)
	}
	return &TransactionResponse{Transaction: t}, nil
}

func (s *PlaceOrderServer) AuthorizeSeatReservation(ctx context.Context, req *AuthorizeSeatReservationRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.AuthorizeSeatReservation(ctx, agent, req.TransactionID, req.Object)
	})
}

func (s *PlaceOrderServer) CancelSeatReservationAuthorization(ctx context.Context, req *CancelAuthorizationRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.CancelSeatReservationAuthorization(ctx, agent, req.TransactionID, req.ActionID)
	})
}

func (s *PlaceOrderServer) AuthorizeCreditCard(ctx context.Context, req *AuthorizeCreditCardRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.AuthorizeCreditCard(ctx, agent, req.TransactionID, orders.CreditCardRequest{
			OrderID: req.OrderID,
			Amount:  req.Amount,
			Card:    req.Card,
		})
	})
}

func (s *PlaceOrderServer) CancelCreditCardAuthorization(ctx context.Context, req *CancelAuthorizationRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.CancelCreditCardAuthorization(ctx, agent, req.TransactionID, req.ActionID)
	})
}

func (s *PlaceOrderServer) AuthorizeMvtk(ctx context.Context, req *AuthorizeMvtkRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.AuthorizeMvtk(ctx, agent, req.TransactionID, req.Object)
	})
}

func (s *PlaceOrderServer) CancelMvtkAuthorization(ctx context.Context, req *CancelAuthorizationRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.CancelMvtkAuthorization(ctx, agent, req.TransactionID, req.ActionID)
	})
}

func (s *PlaceOrderServer) AuthorizeAccount(ctx context.Context, req *AuthorizeAccountRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.AuthorizeAccount(ctx, agent, req.TransactionID, req.Object)
	})
}

func (s *PlaceOrderServer) CancelAccountAuthorization(ctx context.Context, req *CancelAuthorizationRequest) (*ActionResponse, error) {
	return s.action(ctx, func(agent string) (txn.AuthorizeAction, error) {
		return s.service.CancelAccountAuthorization(ctx, agent, req.TransactionID, req.ActionID)
	})
}

func (s *PlaceOrderServer) SetCustomerContact(ctx context.Context, req *SetCustomerContactRequest) (*CustomerContactResponse, error) {
	id, err := agentID(ctx)
	if err != nil {
		return nil, err
	}
	contact, err := s.service.SetCustomerContact(ctx, id, req.TransactionID, req.Contact)
	if err != nil {
		return nil, mapError(err)
	}
	return &CustomerContactResponse{Contact: contact}, nil
}

func (s *PlaceOrderServer) Confirm(ctx context.Context, req *TransactionRequest) (*ConfirmResponse, error) {
	id, err := agentID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.service.Confirm(ctx, id, req.TransactionID)
	if err != nil {
		return nil, mapError(err)
	}
	return &ConfirmResponse{Result: result}, nil
}

func (s *PlaceOrderServer) action(ctx context.Context, call func(agent string) (txn.AuthorizeAction, error)) (*ActionResponse, error) {
	id, err := agentID(ctx)
	if err != nil {
		return nil, err
	}
	action, err := call(id)
	if err != nil {
		return nil, mapError(err)
	}
	return &ActionResponse{Action: action}, nil
}

// mapError maps domain error kinds to gRPC status codes.
func mapError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, txn.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, txn.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, txn.ErrArgumentNull), errors.Is(err, txn.ErrArgument):
		code = codes.InvalidArgument
	case errors.Is(err, txn.ErrAlreadyInUse):
		code = codes.AlreadyExists
	case errors.Is(err, txn.ErrRateLimitExceeded):
		code = codes.ResourceExhausted
	case errors.Is(err, txn.ErrServiceUnavailable):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}
