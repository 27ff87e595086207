package jgxx

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// fallbackEncoding is used whenever a response gives no usable hint about its charset.
var fallbackEncoding encoding.Encoding = simplifiedchinese.GBK

const (
	fallbackEncodingName = "gbk"
	// chardet confidence is 0..100
	minDetectConfidence = 50
)

var detector = chardet.NewHtmlDetector()

func lookupEncoding(name string) (encoding.Encoding, bool) {
	enc, err := htmlindex.Get(name)
	if err == nil && enc != nil {
		return enc, true
	}
	// chardet names such as "GB-18030" aren't whatwg labels
	enc, err = htmlindex.Get(strings.ReplaceAll(name, "-", ""))
	if err == nil && enc != nil {
		return enc, true
	}
	return nil, false
}

// singleByteLatin reports whether a detected charset is a Latin code page.
// chardet picks those for GBK pages whose head is mostly ASCII script, the
// site never serves them, so they count as no detection at all.
func singleByteLatin(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "iso-8859-") || strings.HasPrefix(name, "windows-125")
}

// resolveEncoding picks the encoding of a single response body. The order is
// the declared charset (BOM or Content-Type), the <meta> prescan, statistical
// detection and finally the legacy fallback.
func resolveEncoding(body []byte, contentType string) (encoding.Encoding, string) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if certain {
		return enc, name
	}
	// windows-1252 is what DetermineEncoding guesses when it found nothing,
	// and its utf-8 guess only looks at the first 1024 bytes
	inconclusive := name == "windows-1252" || (name == "utf-8" && !utf8.Valid(body))
	if !inconclusive {
		return enc, name
	}

	result, err := detector.DetectBest(body)
	if err == nil && result != nil && result.Confidence >= minDetectConfidence && !singleByteLatin(result.Charset) {
		if detected, ok := lookupEncoding(result.Charset); ok {
			return detected, strings.ToLower(result.Charset)
		}
	}
	return fallbackEncoding, fallbackEncodingName
}

// decodeBody turns a raw response body into text. Each response is resolved
// on its own, nothing is carried over from earlier responses.
func decodeBody(body []byte, contentType string) (string, string, error) {
	enc, name := resolveEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", name, err
	}
	return string(decoded), name, nil
}
