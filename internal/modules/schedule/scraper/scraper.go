// Package scraper pulls timetables out of published schedule pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"pathbridge/internal/modules/schedule/types"
)

const defaultTimeout = 30 * time.Second

// clockRe matches a departure such as 5:15AM or 12:05PM.
var clockRe = regexp.MustCompile(`\d{1,2}:\d{2}[AP]M`)

var ErrNoTable = errors.New("no table element found on page")

type Scraper interface {
	Scrape(ctx context.Context, direction, pageURL string) (types.Timetable, error)
}

type HTTPScraper struct {
	client *http.Client
	now    func() time.Time
}

// New returns a scraper. A zero timeout uses 30s.
func New(timeout time.Duration) *HTTPScraper {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPScraper{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (s *HTTPScraper) Scrape(ctx context.Context, direction, pageURL string) (types.Timetable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.Timetable{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return types.Timetable{}, fmt.Errorf("get %s: %w", pageURL, err)
	}
	defer func() {
		// Drain so the connection can be reused for the next page.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return types.Timetable{}, fmt.Errorf("get %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	stations, times, err := Parse(resp.Body)
	if err != nil {
		return types.Timetable{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return types.Timetable{
		Direction: direction,
		SourceURL: pageURL,
		Stations:  stations,
		Times:     times,
		FetchedAt: s.now(),
	}, nil
}

// Parse reads the first <table> of a schedule page. Column headers in <thead>
// name the stations; each <tbody> row holds one departure per station column.
// Cells without a clock time ("---") mean no stop and yield nothing.
func Parse(r io.Reader) ([]string, map[string][]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	table := findElement(doc, "table")
	if table == nil {
		return nil, nil, ErrNoTable
	}

	stations := columnNames(table)
	columns := make([][]string, len(stations))
	assignColumns(table, columns)

	times := make(map[string][]string, len(stations))
	for i, stn := range stations {
		if columns[i] == nil {
			columns[i] = []string{}
		}
		times[stn] = columns[i]
	}
	return stations, times, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func columnNames(table *html.Node) []string {
	var names []string
	for section := table.FirstChild; section != nil; section = section.NextSibling {
		if !isElement(section, "thead") {
			continue
		}
		for row := section.FirstChild; row != nil; row = row.NextSibling {
			for cell := row.FirstChild; cell != nil; cell = cell.NextSibling {
				if !isElement(cell, "th") && !isElement(cell, "td") {
					continue
				}
				if name := text(cell); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	return names
}

func assignColumns(table *html.Node, columns [][]string) {
	if len(columns) == 0 {
		return
	}
	for section := table.FirstChild; section != nil; section = section.NextSibling {
		if !isElement(section, "tbody") {
			continue
		}
		for row := section.FirstChild; row != nil; row = row.NextSibling {
			if !isElement(row, "tr") {
				continue
			}
			index := 0
			for cell := row.FirstChild; cell != nil; cell = cell.NextSibling {
				if !isElement(cell, "td") {
					continue
				}
				// PM departures are wrapped in <strong>; text() looks through it.
				clock := clockRe.FindString(text(cell))
				if clock != "" && index < len(columns) {
					columns[index] = append(columns[index], clock)
				}
				index++
			}
		}
	}
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
