package wechatpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignParams(t *testing.T) {
	type tcGiven struct {
		params map[string]string
		apiKey string
	}

	type testCase struct {
		name     string
		given    tcGiven
		expected string
	}

	tests := []testCase{
		{
			name: "unified_order_params",
			given: tcGiven{
				params: map[string]string{
					"appid":        "wx2421b1c4370ec43b",
					"mch_id":       "10000100",
					"nonce_str":    "5K8264ILTKCH16CQ2502SI8ZNMTM67VS",
					"out_trade_no": "mo_7d2a1b3e",
					"total_fee":    "888",
				},
				apiKey: "192006250b4c09247ec02edce69f6a2d",
			},
			expected: "51AA3A219CC110C50454F2928C186216",
		},

		{
			name: "empty_values_and_sign_excluded",
			given: tcGiven{
				params: map[string]string{
					"body":         "test",
					"out_trade_no": "mo_x",
					"total_fee":    "1",
					"refund_desc":  "",
					"sign":         "SHOULDBEIGNORED",
				},
				apiKey: "secret",
			},
			expected: "2B5B3A07AC36BF135126AE0FA2F7996F",
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := SignParams(tc.given.params, tc.given.apiKey)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestVerifyParams(t *testing.T) {
	params := map[string]string{
		"body":         "test",
		"out_trade_no": "mo_x",
		"total_fee":    "1",
	}
	params["sign"] = SignParams(params, "secret")

	assert.True(t, VerifyParams(params, "secret"))
	assert.False(t, VerifyParams(params, "wrong"))

	delete(params, "sign")
	assert.False(t, VerifyParams(params, "secret"))
}

func TestNonceStr(t *testing.T) {
	nonce := NonceStr()
	assert.Len(t, nonce, 32)
	assert.NotEqual(t, nonce, NonceStr())
}
