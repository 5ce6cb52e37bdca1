package rewards

import (
	"context"
)

type MockClient struct {
	FnCreditPoints func(ctx context.Context, req *CreditPointsRequest) (*PointsBalanceResponse, error)
	FnRevokePoints func(ctx context.Context, req *RevokePointsRequest) (*PointsBalanceResponse, error)
}

func (c *MockClient) CreditPoints(ctx context.Context, req *CreditPointsRequest) (*PointsBalanceResponse, error) {
	if c.FnCreditPoints == nil {
		return &PointsBalanceResponse{}, nil
	}

	return c.FnCreditPoints(ctx, req)
}

func (c *MockClient) RevokePoints(ctx context.Context, req *RevokePointsRequest) (*PointsBalanceResponse, error) {
	if c.FnRevokePoints == nil {
		return &PointsBalanceResponse{}, nil
	}

	return c.FnRevokePoints(ctx, req)
}
