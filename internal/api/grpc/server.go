// Package grpcapi exposes the review pipeline as the
// callreview.v1.CallReviewService gRPC service. Requests and responses are
// google.protobuf.Struct messages carrying the same JSON documents as the
// HTTP API.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"call-review-service/internal/api"
	"call-review-service/internal/service/review"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "callreview.v1.CallReviewService"

// Full method names.
const (
	MethodMerge    = "/" + ServiceName + "/Merge"
	MethodValidate = "/" + ServiceName + "/Validate"
	MethodReview   = "/" + ServiceName + "/Review"
)

// CallReviewServer is the server API for the call review service.
type CallReviewServer interface {
	Merge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Review(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// HandlerFunc returns the review handler to serve with, or nil while the
// service is not ready.
type HandlerFunc func() *review.Handler

// Server implements CallReviewServer on top of a review handler.
type Server struct {
	handler HandlerFunc
}

// Register registers the call review service on g.
func Register(g *grpc.Server, handler HandlerFunc) {
	g.RegisterService(&ServiceDesc, &Server{handler: handler})
}

// Merge merges the channel logs of a request.
func (s *Server) Merge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	h, req, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	conv, err := h.Merge(req.Logs)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(api.NewMergeResponse(conv))
}

// Validate validates the pre-generated form of a request.
func (s *Server) Validate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	h, req, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	res, err := h.Validate(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(res)
}

// Review runs the full review of a request.
func (s *Server) Review(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	h, req, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	res, err := h.Run(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(res)
}

func (s *Server) prepare(in *structpb.Struct) (*review.Handler, review.Input, error) {
	h := s.handler()
	if h == nil {
		return nil, review.Input{}, status.Error(codes.Unavailable, "service not ready")
	}
	var req api.ReviewRequest
	if err := decode(in, &req); err != nil {
		return nil, review.Input{}, toStatus(err)
	}
	input, err := req.Input()
	if err != nil {
		return nil, review.Input{}, toStatus(err)
	}
	return h, input, nil
}

func toStatus(err error) error {
	return status.Error(api.GRPCCode(err), err.Error())
}

// decode converts a Struct into a request document.
func decode(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
	}
	return nil
}

// encode converts a response document into a Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func mergeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CallReviewServer).Merge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodMerge}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CallReviewServer).Merge(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func validateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CallReviewServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodValidate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CallReviewServer).Validate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func reviewHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CallReviewServer).Review(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReview}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CallReviewServer).Review(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc for the call review service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CallReviewServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Merge", Handler: mergeHandler},
		{MethodName: "Validate", Handler: validateHandler},
		{MethodName: "Review", Handler: reviewHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callreview/v1/call_review.proto",
}
