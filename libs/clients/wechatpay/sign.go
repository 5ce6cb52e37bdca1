package wechatpay

import (
	"crypto/md5"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// SignParams computes the pay v2 MD5 signature over the given params.
// Params are sorted by key, joined as k=v pairs with &, the api key is
// appended as key=apiKey, and the MD5 digest is upper cased. Empty values
// and the sign field itself are excluded.
func SignParams(params map[string]string, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
		sb.WriteString("&")
	}
	sb.WriteString("key=")
	sb.WriteString(apiKey)

	return strings.ToUpper(fmt.Sprintf("%x", md5.Sum([]byte(sb.String()))))
}

// VerifyParams checks the sign field of params against the computed signature
func VerifyParams(params map[string]string, apiKey string) bool {
	sign, ok := params["sign"]
	if !ok || sign == "" {
		return false
	}
	expected := SignParams(params, apiKey)
	return subtle.ConstantTimeCompare([]byte(sign), []byte(expected)) == 1
}

// NonceStr returns a 32 character random nonce
func NonceStr() string {
	return strings.ReplaceAll(uuid.NewV4().String(), "-", "")
}
