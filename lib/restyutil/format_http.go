package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Exchange is one completed request/response pair of a client. Seq counts
// from 1 per client.
type Exchange struct {
	Seq      uint64
	Elapsed  time.Duration
	Response *resty.Response
}

// InstrumentOutput receives every completed exchange of an instrumented client.
type InstrumentOutput interface {
	Write(exchange Exchange)
}

// headers are written sorted so dumps of two runs diff cleanly
func writeHeaders(sb *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(sb, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<failed to get request body: %s>", err)
	}
	buff, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<failed to read request body: %s>", err)
	}
	return string(buff)
}

// FormatExchange renders an exchange as plain text. The response body is
// written as received, before any charset decoding, so GBK pages show up as
// GBK bytes.
func FormatExchange(e Exchange) string {
	res := e.Response
	var sb strings.Builder

	fmt.Fprintf(&sb, ">>> #%d %s %s\n", e.Seq, res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(&sb, res.Request.RawRequest.Header)
		if body := requestBody(res.Request.RawRequest); body != "" {
			sb.WriteString("\n")
			sb.WriteString(body)
			sb.WriteString("\n")
		}
	} else {
		writeHeaders(&sb, res.Request.Header)
	}

	fmt.Fprintf(&sb, "\n<<< %s (%s)\n", res.Status(), e.Elapsed)
	writeHeaders(&sb, res.Header())
	sb.WriteString("\n")
	sb.Write(res.Body())
	return sb.String()
}
