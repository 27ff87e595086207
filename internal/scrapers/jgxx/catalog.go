package jgxx

import (
	"fmt"
	"strings"

	"lnprice/internal/components/assert"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

const (
	report_catalog_discover_cities = "catalog.discover-cities"
)

const (
	citySelector    = "select[name=dq_id]"
	citySentinel    = "-1"
	cityPlaceholder = "请选择"
	yearSpan        = 5
)

// fallbackCities is served whenever the dropdown can't be read, the markup
// upstream changes too often for an empty catalog to be acceptable.
var fallbackCities = []City{
	{ID: "15", DisplayName: "沈阳市"},
	{ID: "16", DisplayName: "大连市"},
	{ID: "53", DisplayName: "大连金普新区"},
	{ID: "56", DisplayName: "大连开发区（2017前）"},
	{ID: "17", DisplayName: "鞍山市"},
	{ID: "21", DisplayName: "抚顺市"},
	{ID: "22", DisplayName: "本溪市"},
	{ID: "25", DisplayName: "丹东市"},
	{ID: "33", DisplayName: "锦州市"},
	{ID: "29", DisplayName: "营口市"},
	{ID: "34", DisplayName: "阜新市"},
	{ID: "35", DisplayName: "辽阳市"},
	{ID: "36", DisplayName: "铁岭市"},
	{ID: "44", DisplayName: "朝阳市"},
	{ID: "45", DisplayName: "盘锦市"},
	{ID: "47", DisplayName: "葫芦岛市"},
	{ID: "48", DisplayName: "绥中"},
}

// Catalog is the set of cities a session may query, in dropdown order.
type Catalog struct {
	Cities []City
	// Fallback is true when Cities is the built-in table.
	Fallback bool

	byId map[string]int
}

func newCatalog(cities []City, fallback bool) Catalog {
	c := Catalog{Fallback: fallback, byId: map[string]int{}}
	for _, city := range cities {
		idx, exists := c.byId[city.ID]
		if exists {
			c.Cities[idx].DisplayName = city.DisplayName
			continue
		}
		c.byId[city.ID] = len(c.Cities)
		c.Cities = append(c.Cities, city)
	}
	return c
}

func FallbackCatalog() Catalog {
	return newCatalog(fallbackCities, true)
}

func (c Catalog) Lookup(id string) (City, bool) {
	idx, ok := c.byId[id]
	if !ok {
		return City{}, false
	}
	return c.Cities[idx], true
}

// Resolve finds a city by id or by display name. On a miss the error
// suggests the closest display name.
func (c Catalog) Resolve(query string) (City, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return City{}, &ParameterError{Field: "city", Reason: "no city selected"}
	}
	if city, ok := c.Lookup(query); ok {
		return city, nil
	}

	normalized := textutil.NormalizeName(query)
	best := -1
	bestScore := 0.0
	for i, city := range c.Cities {
		name := textutil.NormalizeName(city.DisplayName)
		if name == normalized {
			return city, nil
		}
		score := matchr.JaroWinkler(normalized, name, false)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	reason := fmt.Sprintf("未找到选择的城市ID: %q", query)
	if best >= 0 {
		reason = fmt.Sprintf("%s (did you mean %s?)", reason, c.Cities[best].DisplayName)
	}
	return City{}, &ParameterError{Field: "city", Reason: reason}
}

// ParameterCatalog discovers cities from the handshake markup and generates
// the year and month domains locally.
type ParameterCatalog struct {
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewParameterCatalog(time chrono.TimeAPI, tel telemetry.API) ParameterCatalog {
	assert.NotNil(time)
	assert.NotNil(tel)
	return ParameterCatalog{
		time: time,
		tel:  telemetry.NewScopedAPI("jgxx.catalog", tel),
	}
}

func acceptCityOption(value, text string) bool {
	if value == "" || value == citySentinel {
		return false
	}
	if text == "" || text == cityPlaceholder {
		return false
	}
	// single characters and numbers are stray year/page options
	if len([]rune(text)) <= 1 {
		return false
	}
	return !textutil.IsNumeric(text)
}

// DiscoverCities reads the city dropdown out of the handshake form page.
// It never returns an empty catalog.
func (p ParameterCatalog) DiscoverCities(handshakeHtml string) Catalog {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(handshakeHtml))
	if err != nil {
		p.tel.ReportWarning(report_catalog_discover_cities, fmt.Errorf("parse html: %w", err))
		return FallbackCatalog()
	}

	sel := doc.Find(citySelector).First()
	if sel.Length() == 0 {
		p.tel.ReportWarning(report_catalog_discover_cities, "city dropdown not found, using built-in cities")
		return FallbackCatalog()
	}

	var cities []City
	sel.Find("option").Each(func(_ int, option *goquery.Selection) {
		value := strings.TrimSpace(option.AttrOr("value", ""))
		text := strings.TrimSpace(option.Text())
		if !acceptCityOption(value, text) {
			return
		}
		cities = append(cities, City{ID: value, DisplayName: text})
	})

	if len(cities) == 0 {
		p.tel.ReportWarning(report_catalog_discover_cities, "no usable city options, using built-in cities")
		return FallbackCatalog()
	}

	catalog := newCatalog(cities, false)
	p.tel.ReportCount(report_catalog_discover_cities, int64(len(catalog.Cities)))
	return catalog
}

// YearOptions is the current year and the 4 before it, most recent first.
func (p ParameterCatalog) YearOptions() []int {
	current := p.time.Now().Year()
	years := make([]int, 0, yearSpan)
	for year := current; year > current-yearSpan; year-- {
		years = append(years, year)
	}
	return years
}

// MonthOptions is "01" through "12".
func (p ParameterCatalog) MonthOptions() []string {
	months := make([]string, 12)
	for i := range months {
		months[i] = fmt.Sprintf("%02d", i+1)
	}
	return months
}

// DefaultMonth is the month preselected for a new session.
func (p ParameterCatalog) DefaultMonth() int {
	return int(p.time.Now().Month())
}
