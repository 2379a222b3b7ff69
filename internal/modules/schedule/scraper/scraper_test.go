package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePage = `<!DOCTYPE html>
<html><body>
<h1>JSQ - 33rd St Weekday</h1>
<table class="schedule">
  <thead>
    <tr>
      <th><span>Journal Square</span></th>
      <th><span>Grove Street</span></th>
      <th><span>33rd Street</span></th>
    </tr>
  </thead>
  <tbody>
    <tr><td>5:15AM</td><td>5:19AM</td><td>5:40AM</td></tr>
    <tr><td>---</td><td>5:49AM</td><td>6:10AM</td></tr>
    <tr><td><strong>1:05PM</strong></td><td><strong>1:09PM</strong></td><td>---</td></tr>
  </tbody>
</table>
<table><tbody><tr><td>9:99PM</td></tr></tbody></table>
</body></html>`

func TestParse(t *testing.T) {
	stations, times, err := Parse(strings.NewReader(fixturePage))
	require.NoError(t, err)

	assert.Equal(t, []string{"Journal Square", "Grove Street", "33rd Street"}, stations)
	assert.Equal(t, []string{"5:15AM", "1:05PM"}, times["Journal Square"])
	assert.Equal(t, []string{"5:19AM", "5:49AM", "1:09PM"}, times["Grove Street"])
	assert.Equal(t, []string{"5:40AM", "6:10AM"}, times["33rd Street"])
}

func TestParse_NoTable(t *testing.T) {
	_, _, err := Parse(strings.NewReader(`<html><body><p>maintenance</p></body></html>`))
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestParse_EmptyColumns(t *testing.T) {
	page := `<table><thead><tr><th>A</th><th>B</th></tr></thead>
<tbody><tr><td>---</td><td>7:00AM</td></tr></tbody></table>`

	stations, times, err := Parse(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stations)
	assert.NotNil(t, times["A"])
	assert.Empty(t, times["A"])
	assert.Equal(t, []string{"7:00AM"}, times["B"])
}

func TestHTTPScraper_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/JSQ_33rd_Weekday.html":
			_, _ = w.Write([]byte(fixturePage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fixed := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s := New(0)
	s.now = func() time.Time { return fixed }

	tt, err := s.Scrape(context.Background(), "jsq_33rd", srv.URL+"/JSQ_33rd_Weekday.html")
	require.NoError(t, err)
	assert.Equal(t, "jsq_33rd", tt.Direction)
	assert.Equal(t, fixed, tt.FetchedAt)
	assert.Len(t, tt.Stations, 3)

	_, err = s.Scrape(context.Background(), "x", srv.URL+"/missing.html")
	assert.ErrorContains(t, err, "unexpected status 404")
}
