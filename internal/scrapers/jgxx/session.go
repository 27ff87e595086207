package jgxx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("lnprice/scrapers/jgxx")

const (
	report_session_connect    = "session.connect"
	report_session_disconnect = "session.disconnect"
	report_session_get        = "session.get"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// Session is one handshaken HTTP session with the server. Requests made
// through it are serialized.
type Session struct {
	http *resty.Client
	tel  telemetry.API

	mu            sync.Mutex
	closed        bool
	handshakeHtml string
}

func newSession(opts Options, tel telemetry.API) (*Session, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(opts.BaseUrl, "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	// Accept-Encoding is left to the transport so gzip bodies are decoded for us
	httpClient.SetHeaders(map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
		"Cache-Control":             "no-cache",
		"DNT":                       "1",
		"Pragma":                    "no-cache",
		"Referer":                   baseUrl.JoinPath(entryPath).String(),
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	if opts.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Session{http: httpClient, tel: tel}, nil
}

// HandshakeHTML is the decoded form page from the handshake, it carries the city dropdown.
func (s *Session) HandshakeHTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakeHtml
}

type document struct {
	url      string
	text     string
	encoding string
}

// get fetches a page, fails on anything but HTTP 200 and decodes the body
// with an encoding resolved for this response alone.
func (s *Session) get(ctx context.Context, path string, query url.Values) (document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return document{}, ErrSessionClosed
	}

	req := s.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	res, err := req.Get(path)
	if err != nil {
		return document{}, err
	}
	if res.StatusCode() != http.StatusOK {
		return document{}, &StatusError{Url: res.Request.URL, Status: res.StatusCode()}
	}

	text, encodingName, err := decodeBody(res.Body(), res.Header().Get("Content-Type"))
	if err != nil {
		s.tel.ReportBroken(report_session_get, fmt.Errorf("decode %s: %w", encodingName, err), res.Request.URL)
		return document{}, err
	}
	s.tel.ReportDebug(report_session_get, res.Request.URL, encodingName, len(text))

	return document{url: res.Request.URL, text: text, encoding: encodingName}, nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handshakeHtml = ""
	s.http.SetCookieJar(nil)
}

// SessionManager owns at most one Session and performs the handshake that
// makes the server accept queries.
type SessionManager struct {
	opts  Options
	tel   telemetry.API
	retry retrier

	mu      sync.Mutex
	state   ConnState
	session *Session
}

func NewSessionManager(opts Options, time chrono.TimeAPI, tel telemetry.API) *SessionManager {
	assert.NotNil(time)
	assert.NotNil(tel)

	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("jgxx.session", tel)

	return &SessionManager{
		opts: opts,
		tel:  tel,
		retry: retrier{
			attempts: opts.Attempts,
			delay:    opts.RetryDelay,
			time:     time,
			tel:      tel,
		},
	}
}

func (m *SessionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the connected session or ErrNotConnected.
func (m *SessionManager) Session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected {
		return nil, ErrNotConnected
	}
	return m.session, nil
}

// Connect performs the handshake: GET the entry page, then GET the form page
// with the cookies the entry page handed out. Every attempt starts from a
// fresh client so a failed attempt leaves nothing behind.
func (m *SessionManager) Connect(ctx context.Context) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session:Connect")
	defer span.End()

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.mu.Unlock()

	var session *Session
	attempts, err := m.retry.do(ctx, report_session_connect, func(ctx context.Context, attempt int) error {
		s, err := newSession(m.opts, m.tel)
		if err != nil {
			return err
		}
		_, err = s.get(ctx, entryPath, nil)
		if err != nil {
			return fmt.Errorf("entry page: %w", err)
		}
		form, err := s.get(ctx, formPath, url.Values{"view": {"hidden"}})
		if err != nil {
			return fmt.Errorf("form page: %w", err)
		}
		s.handshakeHtml = form.text
		session = s
		return nil
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnecting {
		// Disconnect was called while the handshake was in flight
		if session != nil {
			session.close()
		}
		return nil, ErrSessionClosed
	}
	if err != nil {
		m.state = StateDisconnected
		m.session = nil
		connErr := &ConnectionError{Attempts: attempts, Err: err}
		m.tel.ReportBroken(report_session_connect, connErr)
		span.RecordError(connErr)
		span.SetStatus(codes.Error, "handshake failed")
		return nil, connErr
	}

	m.state = StateConnected
	m.session = session
	m.tel.ReportDebug(report_session_connect, "connected", attempts)
	return session, nil
}

// Disconnect tears the current session down, any Session handed out before
// fails with ErrSessionClosed from now on.
func (m *SessionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.close()
		m.tel.ReportDebug(report_session_disconnect)
	}
	m.session = nil
	m.state = StateDisconnected
}
