package jgxx

import (
	"errors"
	"fmt"
)

var (
	ErrNoTables         = errors.New("page contains no tables")
	ErrSessionClosed    = errors.New("session has been disconnected")
	ErrAlreadyConnected = errors.New("session manager is already connected")
	ErrNotConnected     = errors.New("not connected")
)

// StatusError is returned for any response that isn't HTTP 200.
type StatusError struct {
	Url    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Url, e.Status)
}

// ConnectionError means the handshake failed on every attempt.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("连接网站失败，已重试%d次: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError means the pagination probe could not be completed.
type QueryError struct {
	Params   QueryParameters
	Attempts int
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf(
		"查询失败 (city %s, %s)，已尝试%d次: %v",
		e.Params.CityID, e.Params.DateString(), e.Attempts, e.Err,
	)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ExtractionError is the failure of a single page, it never aborts a run.
type ExtractionError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("第 %d 页数据提取失败 (%d attempts): %v", e.Page, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ParameterError is a missing or invalid city/year/month selection.
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("请选择城市、年份和月份: %s: %s", e.Field, e.Reason)
}
