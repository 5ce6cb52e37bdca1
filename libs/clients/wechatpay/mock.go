package wechatpay

import (
	"context"
)

type MockClient struct {
	FnUnifiedOrder func(ctx context.Context, req *UnifiedOrderRequest) (*UnifiedOrderResponse, error)
	FnRefund       func(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
}

func (c *MockClient) UnifiedOrder(ctx context.Context, req *UnifiedOrderRequest) (*UnifiedOrderResponse, error) {
	if c.FnUnifiedOrder == nil {
		return &UnifiedOrderResponse{ReturnCode: CodeSuccess, ResultCode: CodeSuccess}, nil
	}

	return c.FnUnifiedOrder(ctx, req)
}

func (c *MockClient) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	if c.FnRefund == nil {
		return &RefundResponse{ReturnCode: CodeSuccess, ResultCode: CodeSuccess}, nil
	}

	return c.FnRefund(ctx, req)
}
