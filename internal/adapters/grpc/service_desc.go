package grpc

import (
	"context"

	grpcpkg "google.golang.org/grpc"
)

// ServiceName is the fully qualified place-order service name.
const ServiceName = "marquee.placeorder.v1.PlaceOrderService"

// placeOrderHandler is checked by grpc.Server.RegisterService.
type placeOrderHandler interface {
	Start(context.Context, *StartRequest) (*TransactionResponse, error)
	Confirm(context.Context, *TransactionRequest) (*ConfirmResponse, error)
}

// unary builds the method handler for one request/response pair.
func unary[Req, Resp any](method string, call func(*PlaceOrderServer, context.Context, *Req) (*Resp, error)) grpcpkg.MethodDesc {
	return grpcpkg.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*PlaceOrderServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes PlaceOrderService for registration on a grpc.Server.
var ServiceDesc = grpcpkg.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*placeOrderHandler)(nil),
	Methods: []grpcpkg.MethodDesc{
		unary("Start", (*PlaceOrderServer).Start),
		unary("GetTransaction", (*PlaceOrderServer).GetTransaction),
		unary("AuthorizeSeatReservation", (*PlaceOrderServer).AuthorizeSeatReservation),
		unary("CancelSeatReservationAuthorization", (*PlaceOrderServer).CancelSeatReservationAuthorization),
		unary("AuthorizeCreditCard", (*PlaceOrderServer).AuthorizeCreditCard),
		unary("CancelCreditCardAuthorization", (*PlaceOrderServer).CancelCreditCardAuthorization),
		unary("AuthorizeMvtk", (*PlaceOrderServer).AuthorizeMvtk),
		unary("CancelMvtkAuthorization", (*PlaceOrderServer).CancelMvtkAuthorization),
		unary("AuthorizeAccount", (*PlaceOrderServer).AuthorizeAccount),
		unary("CancelAccountAuthorization", (*PlaceOrderServer).CancelAccountAuthorization),
		unary("SetCustomerContact", (*PlaceOrderServer).SetCustomerContact),
		unary("Confirm", (*PlaceOrderServer).Confirm),
	},
	Streams: []grpcpkg.StreamDesc{},
}

// RegisterPlaceOrderServer registers srv on s.
func RegisterPlaceOrderServer(s grpcpkg.ServiceRegistrar, srv *PlaceOrderServer) {
	s.RegisterService(&ServiceDesc, srv)
}
