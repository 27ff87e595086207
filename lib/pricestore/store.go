package pricestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/scrapers/jgxx"
	"lnprice/lib/pricestore/db"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	report_store_save   = "store.save"
	report_store_load   = "store.load"
	report_store_delete = "store.delete"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one archived extraction.
type Run struct {
	ID        string
	CreatedAt time.Time
	Region    string
	City      jgxx.City
	Year      int
	Month     int
	Result    jgxx.QueryResult
	Report    jgxx.ExtractReport
	Dataset   jgxx.Dataset
}

type RunSummary struct {
	ID           string
	CreatedAt    time.Time
	Region       string
	CityName     string
	Year         int
	Month        int
	TotalRecords int
	Rows         int
}

// Open opens (or creates) the sqlite database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is its own database
	database.SetMaxOpenConns(1)

	_, err = database.ExecContext(ctx, "pragma foreign_keys = on")
	if err != nil {
		database.Close()
		return nil, err
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

type Store struct {
	db   *sql.DB
	qry  *db.Queries
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewStore(database *sql.DB, time chrono.TimeAPI, tel telemetry.API) Store {
	assert.NotNil(database)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		db:   database,
		qry:  db.New(database),
		time: time,
		tel:  telemetry.NewScopedAPI("pricestore", tel),
	}
}

// Save archives a run and its rows in a single transaction. A run without
// an id is given a new one, the id that was stored is returned.
func (s Store) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.time.Now()
	}

	failedPages, err := json.Marshal(nonNil(run.Report.FailedPages))
	if err != nil {
		return "", err
	}
	headers, err := json.Marshal(nonNil(run.Dataset.Headers))
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:             run.ID,
		CreatedAt:      run.CreatedAt.Unix(),
		Region:         run.Region,
		CityID:         run.City.ID,
		CityName:       run.City.DisplayName,
		Year:           int64(run.Year),
		Month:          int64(run.Month),
		TotalRecords:   int64(run.Result.TotalRecords),
		TotalPages:     int64(run.Result.TotalPages),
		PagesRequested: int64(run.Report.PagesRequested),
		PagesSucceeded: int64(run.Report.PagesSucceeded),
		FailedPages:    string(failedPages),
		Headers:        string(headers),
	})
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, "CreateRun", run.ID)
		return "", err
	}

	for i, row := range run.Dataset.Rows {
		cells, err := json.Marshal(nonNil(row))
		if err != nil {
			return "", err
		}
		err = txqry.CreateRunRow(ctx, db.CreateRunRowParams{
			RunID:    run.ID,
			RowIndex: int64(i),
			Cells:    string(cells),
		})
		if err != nil {
			s.tel.ReportBroken(report_store_save, err, "CreateRunRow", run.ID, i)
			return "", err
		}
	}

	err = tx.Commit()
	if err != nil {
		return "", err
	}
	s.tel.ReportCount(report_store_save, int64(len(run.Dataset.Rows)))
	return run.ID, nil
}

// List returns every archived run, newest first.
func (s Store) List(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.qry.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(rows))
	for i, r := range rows {
		out[i] = RunSummary{
			ID:           r.ID,
			CreatedAt:    time.Unix(r.CreatedAt, 0).In(chrono.Shanghai()),
			Region:       r.Region,
			CityName:     r.CityName,
			Year:         int(r.Year),
			Month:        int(r.Month),
			TotalRecords: int(r.TotalRecords),
			Rows:         int(r.RowCount),
		}
	}
	return out, nil
}

func (s Store) Load(ctx context.Context, id string) (Run, error) {
	r, err := s.qry.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		s.tel.ReportBroken(report_store_load, err, "GetRun", id)
		return Run{}, err
	}

	run := Run{
		ID:        r.ID,
		CreatedAt: time.Unix(r.CreatedAt, 0).In(chrono.Shanghai()),
		Region:    r.Region,
		City:      jgxx.City{ID: r.CityID, DisplayName: r.CityName},
		Year:      int(r.Year),
		Month:     int(r.Month),
		Result: jgxx.QueryResult{
			TotalRecords: int(r.TotalRecords),
			TotalPages:   int(r.TotalPages),
		},
		Report: jgxx.ExtractReport{
			PagesRequested: int(r.PagesRequested),
			PagesSucceeded: int(r.PagesSucceeded),
		},
	}
	err = json.Unmarshal([]byte(r.FailedPages), &run.Report.FailedPages)
	if err != nil {
		s.tel.ReportBroken(report_store_load, err, "failed_pages", id)
		return Run{}, err
	}
	err = json.Unmarshal([]byte(r.Headers), &run.Dataset.Headers)
	if err != nil {
		s.tel.ReportBroken(report_store_load, err, "headers", id)
		return Run{}, err
	}

	cells, err := s.qry.GetRunRows(ctx, id)
	if err != nil {
		s.tel.ReportBroken(report_store_load, err, "GetRunRows", id)
		return Run{}, err
	}
	for _, c := range cells {
		var row []string
		err = json.Unmarshal([]byte(c), &row)
		if err != nil {
			s.tel.ReportBroken(report_store_load, err, "cells", id)
			return Run{}, err
		}
		run.Dataset.Rows = append(run.Dataset.Rows, row)
	}
	run.Report.Rows = len(run.Dataset.Rows)

	return run, nil
}

// Delete removes a run, its rows go with it through the foreign key.
func (s Store) Delete(ctx context.Context, id string) error {
	deleted, err := s.qry.DeleteRun(ctx, id)
	if err != nil {
		s.tel.ReportBroken(report_store_delete, err, id)
		return err
	}
	if deleted == 0 {
		return ErrRunNotFound
	}
	s.tel.ReportDebug(report_store_delete, id)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
