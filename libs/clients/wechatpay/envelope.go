package wechatpay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// EncodeParams renders params as a flat pay v2 xml envelope
func EncodeParams(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("<xml>")
	for _, k := range keys {
		buf.WriteString("<" + k + ">")
		_ = xml.EscapeText(&buf, []byte(params[k]))
		buf.WriteString("</" + k + ">")
	}
	buf.WriteString("</xml>")
	return buf.Bytes()
}

// DecodeParams parses a flat pay v2 xml envelope into params
func DecodeParams(b []byte) (map[string]string, error) {
	params := map[string]string{}

	dec := xml.NewDecoder(bytes.NewReader(b))
	var key string
	var depth int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode xml envelope: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				key = t.Name.Local
			}
		case xml.EndElement:
			depth--
			key = ""
		case xml.CharData:
			if depth == 2 && key != "" {
				params[key] += string(t)
			}
		}
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("failed to decode xml envelope: no fields")
	}
	return params, nil
}
