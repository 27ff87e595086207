package jgxx

import (
	"testing"
	"time"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() (ParameterCatalog, *telemetry.Recorder) {
	tel := telemetry.NewRecorder()
	clock := chrono.NewFakeTime(time.Date(2024, time.May, 10, 9, 0, 0, 0, chrono.Shanghai()))
	return NewParameterCatalog(clock, tel), tel
}

func TestDiscoverCities(t *testing.T) {
	p, tel := newTestCatalog()

	catalog := p.DiscoverCities(readFixture(t, "form.html"))
	require.False(t, catalog.Fallback)

	expected := []City{
		{ID: "15", DisplayName: "沈阳市"},
		{ID: "16", DisplayName: "大连市"},
		{ID: "53", DisplayName: "大连金普新区"},
	}
	if diff := cmp.Diff(expected, catalog.Cities); diff != "" {
		t.Fatalf("cities differ (-want +got):\n%s", diff)
	}

	count, ok := tel.LastCount(report_catalog_discover_cities)
	require.True(t, ok)
	require.EqualValues(t, 3, count)
	require.Empty(t, tel.Reports(telemetry.LevelWarning, report_catalog_discover_cities))
}

func TestDiscoverCitiesFallback(t *testing.T) {
	cases := []struct {
		name string
		html string
	}{
		{name: "no dropdown", html: readFixture(t, "notables.html")},
		{
			name: "only placeholders",
			html: `<select name="dq_id"><option value="-1">请选择</option><option value="3">3</option></select>`,
		},
		{name: "empty document", html: ""},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			p, tel := newTestCatalog()
			catalog := p.DiscoverCities(test.html)

			require.True(t, catalog.Fallback)
			require.Len(t, catalog.Cities, 17)
			require.Equal(t, City{ID: "15", DisplayName: "沈阳市"}, catalog.Cities[0])
			require.Equal(t, City{ID: "48", DisplayName: "绥中"}, catalog.Cities[16])
			require.Len(t, tel.Reports(telemetry.LevelWarning, report_catalog_discover_cities), 1)
		})
	}
}

func TestDiscoverCitiesDuplicateIds(t *testing.T) {
	p, _ := newTestCatalog()
	catalog := p.DiscoverCities(`<select name="dq_id">
		<option value="15">沈阳</option>
		<option value="16">大连市</option>
		<option value="15">沈阳市</option>
	</select>`)

	expected := []City{
		{ID: "15", DisplayName: "沈阳市"},
		{ID: "16", DisplayName: "大连市"},
	}
	if diff := cmp.Diff(expected, catalog.Cities); diff != "" {
		t.Fatalf("cities differ (-want +got):\n%s", diff)
	}
}

func TestCatalogResolve(t *testing.T) {
	catalog := FallbackCatalog()

	city, err := catalog.Resolve("16")
	require.NoError(t, err)
	require.Equal(t, "大连市", city.DisplayName)

	city, err = catalog.Resolve(" 鞍山市 ")
	require.NoError(t, err)
	require.Equal(t, "17", city.ID)

	_, err = catalog.Resolve("沈阳")
	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "city", paramErr.Field)
	require.Contains(t, paramErr.Reason, "沈阳市")

	_, err = catalog.Resolve("")
	require.ErrorAs(t, err, &paramErr)

	_, ok := catalog.Lookup("999")
	require.False(t, ok)
}

func TestDateOptions(t *testing.T) {
	p, _ := newTestCatalog()

	require.Equal(t, []int{2024, 2023, 2022, 2021, 2020}, p.YearOptions())
	require.Equal(t, 5, p.DefaultMonth())

	months := p.MonthOptions()
	require.Len(t, months, 12)
	require.Equal(t, "01", months[0])
	require.Equal(t, "12", months[11])
}
