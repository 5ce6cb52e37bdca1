package rewards

import (
	"context"
	"errors"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/libs/clients"
)

// Client abstracts over the underlying client
type Client interface {
	CreditPoints(ctx context.Context, req *CreditPointsRequest) (*PointsBalanceResponse, error)
	RevokePoints(ctx context.Context, req *RevokePointsRequest) (*PointsBalanceResponse, error)
}

// HTTPClient wraps http.Client for interacting with the rewards server
type HTTPClient struct {
	client *clients.SimpleHTTPClient
}

// ErrEmptyServerURL - no rewards server url was configured
var ErrEmptyServerURL = errors.New("rewards: server url was empty")

// New returns a new HTTPClient for the rewards service at serverURL
func New(serverURL, authToken string) (Client, error) {
	if serverURL == "" {
		return nil, ErrEmptyServerURL
	}

	client, err := clients.New(serverURL, authToken)
	if err != nil {
		return nil, err
	}

	return NewInstrumented(&HTTPClient{client}), nil
}

// CreditPointsRequest - request to credit loyalty points for a settled order
type CreditPointsRequest struct {
	OwnerID   uuid.UUID       `json:"ownerId"`
	OrderID   uuid.UUID       `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// RevokePointsRequest - request to claw back points for a refunded order
type RevokePointsRequest struct {
	OwnerID   uuid.UUID       `json:"ownerId"`
	OrderID   uuid.UUID       `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// PointsBalanceResponse - the resulting points balance for the owner
type PointsBalanceResponse struct {
	OwnerID uuid.UUID       `json:"ownerId"`
	Balance decimal.Decimal `json:"balance"`
}

// CreditPoints credits loyalty points to the order owner
func (c *HTTPClient) CreditPoints(ctx context.Context, creditReq *CreditPointsRequest) (*PointsBalanceResponse, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v1/points/credit", creditReq, nil)
	if err != nil {
		return nil, err
	}

	var resp PointsBalanceResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// RevokePoints removes previously credited points from the order owner
func (c *HTTPClient) RevokePoints(ctx context.Context, revokeReq *RevokePointsRequest) (*PointsBalanceResponse, error) {
	req, err := c.client.NewRequest(ctx, "POST", "v1/points/revoke", revokeReq, nil)
	if err != nil {
		return nil, err
	}

	var resp PointsBalanceResponse
	if _, err := c.client.Do(ctx, req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
