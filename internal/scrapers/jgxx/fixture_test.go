package jgxx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const sessionCookie = "ASPSESSIONIDQQTRBACS"

// fixtureServer imitates the price list site, it serves GBK encoded pages
// and only answers the form when the session cookie from the entry page is sent back.
type fixtureServer struct {
	*httptest.Server
	t *testing.T

	entry string
	form  string

	mu       sync.Mutex
	pages    map[int]string
	stalls   map[int]time.Duration
	failures map[string]int
	queries  []url.Values
	hits     map[string]int
	cookieOK bool
}

func newFixtureServer(t *testing.T) *fixtureServer {
	f := &fixtureServer{
		t:        t,
		entry:    readFixture(t, "entry.html"),
		form:     readFixture(t, "form.html"),
		pages:    map[int]string{},
		stalls:   map[int]time.Duration{},
		failures: map[string]int{},
		hits:     map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

// failNext makes the next n requests to path respond with 500.
func (f *fixtureServer) failNext(path string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = n
}

func (f *fixtureServer) setPage(n int, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[n] = html
}

// stallPage delays every response for page n by d, or until the client gives up.
func (f *fixtureServer) stallPage(n int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stalls[n] = d
}

func (f *fixtureServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fixtureServer) cookieSeen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookieOK
}

func (f *fixtureServer) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func (f *fixtureServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	if f.failures[r.URL.Path] > 0 {
		f.failures[r.URL.Path]--
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	f.mu.Unlock()

	switch r.URL.Path {
	case entryPath:
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "KJHGFDSA", Path: "/"})
		f.writeGBK(w, f.entry)
	case formPath:
		_, err := r.Cookie(sessionCookie)
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.mu.Lock()
		f.cookieOK = true
		f.mu.Unlock()

		pageno := r.URL.Query().Get("pageno")
		if pageno == "" {
			f.writeGBK(w, f.form)
			return
		}
		n, err := strconv.Atoi(pageno)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query())
		html, ok := f.pages[n]
		stall := f.stalls[n]
		f.mu.Unlock()
		if stall > 0 {
			timer := time.NewTimer(stall)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.writeGBK(w, html)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fixtureServer) writeGBK(w http.ResponseWriter, html string) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(html)
	if err != nil {
		f.t.Errorf("fixture is not encodable as gbk: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	// like the real server, no charset in the header
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(encoded))
}

func readFixture(t *testing.T, name string) string {
	buff, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(buff)
}

// resultHtml renders a result page the way the site does: a layout table
// with the counter above the data table.
func resultHtml(counter string, headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(`<html><head><meta http-equiv="Content-Type" content="text/html; charset=gb2312"></head><body>`)
	fmt.Fprintf(&b, `<table class="nav"><tr><td>%s</td><td><a href="#">下一页</a></td></tr></table>`, counter)
	b.WriteString(`<table border="1">`)
	b.WriteString("<tr>")
	for _, h := range headers {
		fmt.Fprintf(&b, "<th> %s </th>", h)
	}
	b.WriteString("</tr>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>\n  %s\n</td>", cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

var fixtureHeaders = []string{"序号", "材料名称", "规格型号", "单位", "价格(元)"}

func fixtureRows(page, n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{
			strconv.Itoa((page-1)*PageSize + i + 1),
			"热轧带肋钢筋",
			fmt.Sprintf("HRB400 Φ%d", 12+i%4),
			"吨",
			strconv.Itoa(3900 + i),
		}
	}
	return rows
}

type testDeps struct {
	opts Options
	time *chrono.FakeTime
	tel  *telemetry.Recorder
}

func newTestDeps(server *fixtureServer) testDeps {
	opts := DefaultOptions()
	opts.BaseUrl = server.URL
	opts.Timeout = 5 * time.Second
	return testDeps{
		opts: opts,
		time: chrono.NewFakeTime(time.Date(2024, time.May, 10, 9, 0, 0, 0, chrono.Shanghai())),
		tel:  telemetry.NewRecorder(),
	}
}

func connect(t *testing.T, deps testDeps) (*SessionManager, *Session) {
	manager := NewSessionManager(deps.opts, deps.time, deps.tel)
	session, err := manager.Connect(context.Background())
	require.NoError(t, err)
	return manager, session
}
