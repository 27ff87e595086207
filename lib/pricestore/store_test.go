package pricestore

import (
	"context"
	"testing"
	"time"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/scrapers/jgxx"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	clock := chrono.NewFakeTime(time.Date(2024, time.May, 10, 9, 0, 0, 0, chrono.Shanghai()))
	store := NewStore(database, clock, telemetry.NewRecorder())

	{
		runs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 0)

		_, err = store.Load(ctx, "missing")
		require.ErrorIs(t, err, ErrRunNotFound)
	}

	shenyang := Run{
		Region: "辽宁省",
		City:   jgxx.City{ID: "15", DisplayName: "沈阳市"},
		Year:   2024,
		Month:  5,
		Result: jgxx.QueryResult{TotalRecords: 120, TotalPages: 3},
		Report: jgxx.ExtractReport{PagesRequested: 3, PagesSucceeded: 2, FailedPages: []int{2}, Rows: 2},
		Dataset: jgxx.Dataset{
			Headers: []string{"序号", "材料名称", "价格(元)"},
			Rows: [][]string{
				{"1", "热轧带肋钢筋", "3900"},
				{"2", "水泥", ""},
			},
		},
	}
	firstId, err := store.Save(ctx, shenyang)
	require.NoError(t, err)
	require.NotEmpty(t, firstId)

	require.NoError(t, clock.Sleep(ctx, time.Hour))
	dalian := Run{
		Region:  "辽宁省",
		City:    jgxx.City{ID: "16", DisplayName: "大连市"},
		Year:    2024,
		Month:   4,
		Result:  jgxx.QueryResult{TotalRecords: 0, TotalPages: 1},
		Report:  jgxx.ExtractReport{PagesRequested: 1, FailedPages: []int{1}},
		Dataset: jgxx.Dataset{},
	}
	secondId, err := store.Save(ctx, dalian)
	require.NoError(t, err)
	require.NotEqual(t, firstId, secondId)

	runs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, secondId, runs[0].ID)
	require.Equal(t, firstId, runs[1].ID)
	require.Equal(t, "沈阳市", runs[1].CityName)
	require.Equal(t, 2, runs[1].Rows)
	require.Equal(t, 120, runs[1].TotalRecords)
	require.Equal(t, 0, runs[0].Rows)

	loaded, err := store.Load(ctx, firstId)
	require.NoError(t, err)
	shenyang.ID = firstId
	shenyang.CreatedAt = clock.Now().Add(-time.Hour)
	if diff := cmp.Diff(shenyang, loaded, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Fatalf("loaded run differs (-want +got):\n%s", diff)
	}

	loaded, err = store.Load(ctx, secondId)
	require.NoError(t, err)
	require.True(t, loaded.Dataset.Empty())
	require.Equal(t, []int{1}, loaded.Report.FailedPages)

	require.NoError(t, store.Delete(ctx, firstId))
	_, err = store.Load(ctx, firstId)
	require.ErrorIs(t, err, ErrRunNotFound)
	require.ErrorIs(t, store.Delete(ctx, firstId), ErrRunNotFound)

	runs, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestStoreKeepsGivenId(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	store := NewStore(database, chrono.NewStandardTime(), telemetry.NewRecorder())
	id, err := store.Save(ctx, Run{ID: "fixed", City: jgxx.City{ID: "15"}})
	require.NoError(t, err)
	require.Equal(t, "fixed", id)

	_, err = store.Save(ctx, Run{ID: "fixed"})
	require.Error(t, err)
}

func TestStoreDeleteRemovesRows(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	tel := telemetry.NewRecorder()
	store := NewStore(database, chrono.NewStandardTime(), tel)
	id, err := store.Save(ctx, Run{
		City:    jgxx.City{ID: "15", DisplayName: "沈阳市"},
		Year:    2024,
		Month:   5,
		Dataset: jgxx.Dataset{Headers: []string{"序号"}, Rows: [][]string{{"1"}, {"2"}}},
	})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	var remaining int
	err = database.QueryRowContext(ctx, "select count(*) from run_rows where run_id = ?", id).Scan(&remaining)
	require.NoError(t, err)
	require.Zero(t, remaining)

	require.ErrorIs(t, store.Delete(ctx, "missing"), ErrRunNotFound)
	require.Empty(t, tel.Reports(telemetry.LevelBroken, report_store_delete))
}
