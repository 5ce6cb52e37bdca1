package wechatpay

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentCallbackXML = `<xml>
  <return_code><![CDATA[SUCCESS]]></return_code>
  <result_code><![CDATA[SUCCESS]]></result_code>
  <out_trade_no><![CDATA[mo_x]]></out_trade_no>
  <transaction_id><![CDATA[4200001]]></transaction_id>
  <total_fee>888</total_fee>
  <time_end><![CDATA[20240301120000]]></time_end>
  <sign><![CDATA[35AF19732D93B7C70B184CCE3860933D]]></sign>
</xml>`

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(paymentCallbackXML))
	require.NoError(t, err)

	assert.Equal(t, CodeSuccess, n.ReturnCode())
	assert.Equal(t, CodeSuccess, n.ResultCode())
	assert.Equal(t, "mo_x", n.OutTradeNo())
	assert.Equal(t, "4200001", n.TransactionID())

	amount, err := n.TotalAmount()
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("8.88")))

	end, err := n.TimeEnd()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, cst).Unix(), end.Unix())
}

func TestNotification_Verify(t *testing.T) {
	n, err := ParseNotification([]byte(paymentCallbackXML))
	require.NoError(t, err)

	assert.NoError(t, n.Verify("secret"))
	assert.ErrorIs(t, n.Verify("wrong"), ErrInvalidSignature)
}

func TestParseNotification_Invalid(t *testing.T) {
	_, err := ParseNotification([]byte("not xml at all"))
	assert.Error(t, err)
}

func TestEncodeDecodeParams(t *testing.T) {
	params := map[string]string{
		"appid":        "wx123",
		"out_trade_no": "mo_abc",
		"body":         "Order <mo_abc>",
	}

	decoded, err := DecodeParams(EncodeParams(params))
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestFeeConversions(t *testing.T) {
	assert.Equal(t, int64(888), FeeFromAmount(decimal.RequireFromString("8.88")))
	assert.True(t, AmountFromFee(888).Equal(decimal.RequireFromString("8.88")))
}
