package wechatpay

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CodeSuccess is the success value for return_code and result_code
	CodeSuccess = "SUCCESS"
	// CodeFail is the failure value for return_code and result_code
	CodeFail = "FAIL"
)

// timeEndLayout is the pay v2 time_end format, local to UTC+8
const timeEndLayout = "20060102150405"

var cst = time.FixedZone("CST", 8*60*60)

var (
	// ErrMissingOutTradeNo - the notification lacks an out_trade_no
	ErrMissingOutTradeNo = errors.New("wechatpay: notification missing out_trade_no")
	// ErrMissingTransactionID - the notification lacks a gateway transaction id
	ErrMissingTransactionID = errors.New("wechatpay: notification missing transaction_id")
	// ErrMissingOutRefundNo - the notification lacks an out_refund_no
	ErrMissingOutRefundNo = errors.New("wechatpay: notification missing out_refund_no")
	// ErrInvalidSignature - the notification signature does not verify
	ErrInvalidSignature = errors.New("wechatpay: invalid notification signature")
)

// Notification is a parsed payment or refund callback envelope
type Notification struct {
	Params map[string]string
}

// ParseNotification decodes the callback xml into a Notification
func ParseNotification(b []byte) (*Notification, error) {
	params, err := DecodeParams(b)
	if err != nil {
		return nil, err
	}
	return &Notification{Params: params}, nil
}

// Verify checks the notification signature against the api key
func (n *Notification) Verify(apiKey string) error {
	if !VerifyParams(n.Params, apiKey) {
		return ErrInvalidSignature
	}
	return nil
}

// ReturnCode - the protocol level status
func (n *Notification) ReturnCode() string {
	return n.Params["return_code"]
}

// ResultCode - the business level status
func (n *Notification) ResultCode() string {
	return n.Params["result_code"]
}

// ErrCodeDes - the business level error description
func (n *Notification) ErrCodeDes() string {
	return n.Params["err_code_des"]
}

// OutTradeNo - the merchant side transaction reference
func (n *Notification) OutTradeNo() string {
	return n.Params["out_trade_no"]
}

// TransactionID - the gateway side transaction id
func (n *Notification) TransactionID() string {
	return n.Params["transaction_id"]
}

// OutRefundNo - the merchant side refund reference
func (n *Notification) OutRefundNo() string {
	return n.Params["out_refund_no"]
}

// RefundID - the gateway side refund id
func (n *Notification) RefundID() string {
	return n.Params["refund_id"]
}

// TotalAmount - the paid amount in currency units converted from total_fee cents
func (n *Notification) TotalAmount() (decimal.Decimal, error) {
	fee, err := strconv.ParseInt(n.Params["total_fee"], 10, 64)
	if err != nil {
		return decimal.Zero, err
	}
	return AmountFromFee(fee), nil
}

// RefundAmount - the refunded amount converted from refund_fee cents
func (n *Notification) RefundAmount() (decimal.Decimal, error) {
	fee, err := strconv.ParseInt(n.Params["refund_fee"], 10, 64)
	if err != nil {
		return decimal.Zero, err
	}
	return AmountFromFee(fee), nil
}

// TimeEnd - the gateway completion timestamp
func (n *Notification) TimeEnd() (time.Time, error) {
	return time.ParseInLocation(timeEndLayout, n.Params["time_end"], cst)
}

// AmountFromFee converts a fee in cents into a decimal amount
func AmountFromFee(fee int64) decimal.Decimal {
	return decimal.New(fee, -2)
}

// FeeFromAmount converts a decimal amount into a fee in cents
func FeeFromAmount(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.New(100, 0)).IntPart()
}

// SuccessAck is the xml body acknowledging a processed notification
func SuccessAck() []byte {
	return []byte("<xml><return_code><![CDATA[SUCCESS]]></return_code><return_msg><![CDATA[OK]]></return_msg></xml>")
}

// FailAck is the xml body rejecting a notification with a message
func FailAck(msg string) []byte {
	return []byte("<xml><return_code><![CDATA[FAIL]]></return_code><return_msg><![CDATA[" + msg + "]]></return_msg></xml>")
}
