package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the client API for the call review service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Merge calls CallReviewService/Merge.
func (c *Client) Merge(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodMerge, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate calls CallReviewService/Validate.
func (c *Client) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodValidate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Review calls CallReviewService/Review.
func (c *Client) Review(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodReview, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Call invokes method with req encoded as a Struct and decodes the reply
// into resp. Both are JSON documents such as api.ReviewRequest.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	in := &structpb.Struct{}
	if err := protojson.Unmarshal(data, in); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}

	data, err = protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(data, resp)
}
