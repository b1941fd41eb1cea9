package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/navaids/internal/config"
	"github.com/sells-group/navaids/internal/feed"
	"github.com/sells-group/navaids/internal/fetcher"
	"github.com/sells-group/navaids/internal/model"
	"github.com/sells-group/navaids/internal/monitoring"
)

const weeklyDocFmt = `<?xml version="1.0" encoding="UTF-8"?>
<root xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:od="urn:schemas-microsoft-com:officedata">
  <xsd:schema>
    <xsd:element name="dataroot">
      <xsd:complexType><xsd:sequence><xsd:element ref="od:Weekly"/></xsd:sequence></xsd:complexType>
    </xsd:element>
    <xsd:element name="Weekly">
      <xsd:complexType>
        <xsd:sequence>
          <xsd:element name="Aid_x0020_Name"/>
          <xsd:element name="Latitude_x0020_DMS"/>
          <xsd:element name="Longitude_x0020_DMS"/>
          <xsd:element name="District"/>
        </xsd:sequence>
      </xsd:complexType>
    </xsd:element>
  </xsd:schema>
  <dataroot>
    <Weekly>
      <Aid_x0020_Name>Aid %[1]d-A</Aid_x0020_Name>
      <Latitude_x0020_DMS>41-15-22.980N</Latitude_x0020_DMS>
      <Longitude_x0020_DMS>072-39-50.640W</Longitude_x0020_DMS>
    </Weekly>
    <Weekly>
      <Aid_x0020_Name>Aid %[1]d-B</Aid_x0020_Name>
      <Latitude_x0020_DMS>41-16-00.000N</Latitude_x0020_DMS>
      <Longitude_x0020_DMS>072-40-00.000W</Longitude_x0020_DMS>
    </Weekly>
  </dataroot>
</root>`

func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxRetries:        1,
		RequestsPerSecond: 1000,
		BackoffBase:       time.Millisecond,
	})
}

// districtServer serves weekly documents at /weekly/{n} and a 404 for the
// districts listed in failing.
func districtServer(t *testing.T, failing ...int) *httptest.Server {
	t.Helper()
	fail := make(map[int]bool)
	for _, d := range failing {
		fail[d] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/weekly/"))
		if err != nil || fail[d] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, weeklyDocFmt, d)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAll_PartialFailure(t *testing.T) {
	srv := districtServer(t, 2, 5, 9)
	reg := DefaultRegistry(config.FeedsConfig{
		NoticeURL:       srv.URL + "/notice",
		WeeklyURL:       srv.URL + "/weekly/%d",
		WeeklyDistricts: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})
	weekly, err := reg.Get(SourceWeekly)
	require.NoError(t, err)

	metrics := monitoring.NewMetricsForTesting()
	c := NewCollector(newTestFetcher(), metrics, time.Second, 4)
	res := c.FetchAll(context.Background(), weekly)

	require.Len(t, res.Failures, 3)
	assert.Equal(t, srv.URL+"/weekly/2", res.Failures[0].URL)
	assert.Equal(t, srv.URL+"/weekly/5", res.Failures[1].URL)
	assert.Equal(t, srv.URL+"/weekly/9", res.Failures[2].URL)

	// 7 documents, two records each, merged in district order.
	require.Len(t, res.Points, 14)
	var order []string
	for _, p := range res.Points {
		order = append(order, p.Source)
	}
	var want []string
	for _, d := range []int{1, 3, 4, 6, 7, 8, 10} {
		want = append(want, model.WeeklySource(strconv.Itoa(d)), model.WeeklySource(strconv.Itoa(d)))
	}
	assert.Equal(t, want, order)
	assert.Equal(t, "Aid 1-A", *res.Points[0].AidName)
	assert.Equal(t, "Aid 1-B", *res.Points[1].AidName)
}

// fakeFetcher serves canned bodies keyed by URL and tracks peak concurrency.
type fakeFetcher struct {
	bodies map[string]string
	delay  time.Duration

	mu      sync.Mutex
	active  int
	peak    int
	fetched []string
}

func (f *fakeFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status 404 for %s", url)
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func TestFetchAll_BoundedConcurrency(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{}, delay: 20 * time.Millisecond}
	var src Source
	src.Name = SourceWeekly
	for d := 1; d <= 10; d++ {
		url := fmt.Sprintf("mem://weekly/%d", d)
		f.bodies[url] = fmt.Sprintf(weeklyDocFmt, d)
		src.Targets = append(src.Targets, Target{URL: url, Extractor: feed.WeeklyExtractor{District: strconv.Itoa(d)}})
	}

	res := NewCollector(f, nil, time.Second, 4).FetchAll(context.Background(), src)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Points, 20)
	assert.LessOrEqual(t, f.peak, 4)
	assert.Len(t, f.fetched, 10)
}

func TestFetchOne_ExtractError(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{"mem://bad": "<LNM><DISCREPANCIES>"}}
	_, err := NewCollector(f, nil, time.Second, 1).FetchOne(context.Background(), "mem://bad", feed.NoticeExtractor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: extract mem://bad")
}

func TestFetchOne_Timeout(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{"mem://slow": "<LNM/>"}, delay: time.Second}
	_, err := NewCollector(f, nil, 10*time.Millisecond, 1).FetchOne(context.Background(), "mem://slow", feed.NoticeExtractor{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollect_RegistryOrder(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"mem://weekly/1": fmt.Sprintf(weeklyDocFmt, 1),
	}}
	reg := NewRegistry()
	reg.Register(Source{Name: SourceNotice, Targets: []Target{{URL: "mem://notice", Extractor: feed.NoticeExtractor{}}}})
	reg.Register(Source{Name: SourceWeekly, Targets: []Target{{URL: "mem://weekly/1", Extractor: feed.WeeklyExtractor{District: "1"}}}})

	results := NewCollector(f, nil, time.Second, 4).Collect(context.Background(), reg.All())
	require.Len(t, results, 2)
	assert.Equal(t, SourceNotice, results[0].Source)
	assert.Len(t, results[0].Failures, 1, "notice fails without cancelling weekly")
	assert.Equal(t, SourceWeekly, results[1].Source)
	assert.Len(t, results[1].Points, 2)
	assert.Len(t, Merge(results), 2)
}
