package wechatpay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/openmall/mall-go/libs/closers"
	"github.com/openmall/mall-go/libs/middleware"
)

// UnifiedOrderRequest represents a request to create a gateway prepay order.
type UnifiedOrderRequest struct {
	Body           string
	OutTradeNo     string
	TotalFee       int64
	SpbillCreateIP string
	NotifyURL      string
	TradeType      string
}

// UnifiedOrderResponse represents the result of a prepay order submission.
type UnifiedOrderResponse struct {
	ReturnCode string
	ReturnMsg  string
	ResultCode string
	ErrCodeDes string
	PrepayID   string
	CodeURL    string
}

// RefundRequest represents a request to refund a settled payment.
type RefundRequest struct {
	OutTradeNo  string
	OutRefundNo string
	TotalFee    int64
	RefundFee   int64
	RefundDesc  string
}

// RefundResponse represents the result of a refund submission.
type RefundResponse struct {
	ReturnCode string
	ReturnMsg  string
	ResultCode string
	ErrCodeDes string
	RefundID   string
}

// Client communicates with the pay v2 gateway.
type Client struct {
	baseURL    *url.URL
	appID      string
	merchantID string
	apiKey     string

	client *http.Client
}

// New returns a ready to use Client.
func New(srvURL, appID, merchantID, apiKey string) (*Client, error) {
	return newClient(srvURL, appID, merchantID, apiKey)
}

// NewInstrumented returns a Client decorated with a prometheus summary metric.
func NewInstrumented(srvURL, appID, merchantID, apiKey string) (*InstrumentedClient, error) {
	cl, err := newClient(srvURL, appID, merchantID, apiKey)
	if err != nil {
		return nil, err
	}

	return newInstrumentedClient("wechatpay_client", cl), nil
}

func newClient(srvURL, appID, merchantID, apiKey string) (*Client, error) {
	baseURL, err := url.Parse(srvURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    baseURL,
		appID:      appID,
		merchantID: merchantID,
		apiKey:     apiKey,
		client: &http.Client{
			Timeout:   time.Second * 30,
			Transport: middleware.InstrumentRoundTripper(http.DefaultTransport, "wechatpay"),
		},
	}, nil
}

// UnifiedOrder creates a prepay order with the gateway.
func (c *Client) UnifiedOrder(ctx context.Context, req *UnifiedOrderRequest) (*UnifiedOrderResponse, error) {
	params := map[string]string{
		"appid":            c.appID,
		"mch_id":           c.merchantID,
		"nonce_str":        NonceStr(),
		"body":             req.Body,
		"out_trade_no":     req.OutTradeNo,
		"total_fee":        fmt.Sprintf("%d", req.TotalFee),
		"spbill_create_ip": req.SpbillCreateIP,
		"notify_url":       req.NotifyURL,
		"trade_type":       req.TradeType,
	}
	params["sign"] = SignParams(params, c.apiKey)

	result, err := c.do(ctx, "/pay/unifiedorder", params)
	if err != nil {
		return nil, err
	}

	return &UnifiedOrderResponse{
		ReturnCode: result["return_code"],
		ReturnMsg:  result["return_msg"],
		ResultCode: result["result_code"],
		ErrCodeDes: result["err_code_des"],
		PrepayID:   result["prepay_id"],
		CodeURL:    result["code_url"],
	}, nil
}

// Refund submits a refund against an earlier payment.
func (c *Client) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	desc := req.RefundDesc
	if len(desc) > 80 {
		// gateway limit on the refund description
		desc = desc[:80]
	}

	params := map[string]string{
		"appid":         c.appID,
		"mch_id":        c.merchantID,
		"nonce_str":     NonceStr(),
		"out_trade_no":  req.OutTradeNo,
		"out_refund_no": req.OutRefundNo,
		"total_fee":     fmt.Sprintf("%d", req.TotalFee),
		"refund_fee":    fmt.Sprintf("%d", req.RefundFee),
		"refund_desc":   desc,
	}
	params["sign"] = SignParams(params, c.apiKey)

	result, err := c.do(ctx, "/secapi/pay/refund", params)
	if err != nil {
		return nil, err
	}

	return &RefundResponse{
		ReturnCode: result["return_code"],
		ReturnMsg:  result["return_msg"],
		ResultCode: result["result_code"],
		ErrCodeDes: result["err_code_des"],
		RefundID:   result["refund_id"],
	}, nil
}

func (c *Client) do(ctx context.Context, path string, params map[string]string) (map[string]string, error) {
	resolvedURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolvedURL.String(), bytes.NewReader(EncodeParams(params)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer closers.Panic(ctx, resp.Body)

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("wechatpay: unexpected status %d", resp.StatusCode)
	}

	result, err := DecodeParams(body)
	if err != nil {
		return nil, err
	}

	// responses carrying a signature must verify against the api key
	if _, ok := result["sign"]; ok {
		if !VerifyParams(result, c.apiKey) {
			return nil, errors.New("wechatpay: invalid response signature")
		}
	}

	return result, nil
}
