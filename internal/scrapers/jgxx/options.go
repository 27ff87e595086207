package jgxx

import (
	"time"

	"lnprice/lib/restyutil"
)

const (
	entryPath = "/jgxx_clcx.asp"
	formPath  = "/jgxx_cl1.asp"
)

type Options struct {
	BaseUrl    string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	// RequestsPerSecond limits the request rate of a session, 0 means unlimited.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport with browser-like TLS settings.
	CloudflareBypass bool
	// Dump receives every raw HTTP exchange when not nil.
	Dump restyutil.InstrumentOutput
}

func DefaultOptions() Options {
	return Options{
		BaseUrl:    "http://218.60.144.156",
		Timeout:    time.Second * 60,
		Attempts:   3,
		RetryDelay: time.Second * 2,
	}
}

// withDefaults fills every zero field from DefaultOptions.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.BaseUrl == "" {
		o.BaseUrl = defaults.BaseUrl
	}
	if o.Timeout <= 0 {
		o.Timeout = defaults.Timeout
	}
	if o.Attempts <= 0 {
		o.Attempts = defaults.Attempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaults.RetryDelay
	}
	return o
}
