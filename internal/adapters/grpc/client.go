package grpc

import (
	"context"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// PlaceOrderClient calls PlaceOrderService over a client connection.
type PlaceOrderClient struct {
	conn grpcpkg.ClientConnInterface
}

func NewPlaceOrderClient(conn grpcpkg.ClientConnInterface) *PlaceOrderClient {
	return &PlaceOrderClient{conn: conn}
}

// WithAgent attaches the buyer id to outgoing calls.
func WithAgent(ctx context.Context, agentID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, AgentIDHeader, agentID)
}

func (c *PlaceOrderClient) invoke(ctx context.Context, method string, in, out any, opts ...grpcpkg.CallOption) error {
	opts = append([]grpcpkg.CallOption{grpcpkg.CallContentSubtype(CodecName)}, opts...)
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *PlaceOrderClient) Start(ctx context.Context, in *StartRequest, opts ...grpcpkg.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, "Start", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) GetTransaction(ctx context.Context, in *TransactionRequest, opts ...grpcpkg.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, "GetTransaction", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) AuthorizeSeatReservation(ctx context.Context, in *AuthorizeSeatReservationRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "AuthorizeSeatReservation", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) CancelSeatReservationAuthorization(ctx context.Context, in *CancelAuthorizationRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "CancelSeatReservationAuthorization", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) AuthorizeCreditCard(ctx context.Context, in *AuthorizeCreditCardRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "AuthorizeCreditCard", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) CancelCreditCardAuthorization(ctx context.Context, in *CancelAuthorizationRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "CancelCreditCardAuthorization", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) AuthorizeMvtk(ctx context.Context, in *AuthorizeMvtkRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "AuthorizeMvtk", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) CancelMvtkAuthorization(ctx context.Context, in *CancelAuthorizationRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "CancelMvtkAuthorization", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) AuthorizeAccount(ctx context.Context, in *AuthorizeAccountRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "AuthorizeAccount", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) CancelAccountAuthorization(ctx context.Context, in *CancelAuthorizationRequest, opts ...grpcpkg.CallOption) (*ActionResponse, error) {
	out := new(ActionResponse)
	if err := c.invoke(ctx, "CancelAccountAuthorization", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) SetCustomerContact(ctx context.Context, in *SetCustomerContactRequest, opts ...grpcpkg.CallOption) (*CustomerContactResponse, error) {
	out := new(CustomerContactResponse)
	if err := c.invoke(ctx, "SetCustomerContact", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlaceOrderClient) Confirm(ctx context.Context, in *TransactionRequest, opts ...grpcpkg.CallOption) (*ConfirmResponse, error) {
	out := new(ConfirmResponse)
	if err := c.invoke(ctx, "Confirm", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
