package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	memstorage "github.com/JakeFAU/glossary-harvester/internal/storage/memory"
)

type recordingSink struct {
	mu      sync.Mutex
	records []glossary.Record
	err     error
}

func (s *recordingSink) Enqueue(_ context.Context, rec glossary.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Term)
	}
	return out
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, path, contentType, string(body))
	return args.String(0), args.Error(1)
}

func newGlossaryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="content"><ul>
			<li><a href="/termo/cache">Cache</a></li>
			<li><a href="/termo/ram">RAM</a></li>
			<li><a href="/termo/missing">Missing</a></li>
		</ul></div></body></html>`)
	})
	term := func(title, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body><h1 class="header-post-title-class">%s</h1>
				<div class="entry-content"><p>%s</p></div></body></html>`, title, body)
		}
	}
	mux.HandleFunc("/termo/cache", term("Cache", "Memória rápida."))
	mux.HandleFunc("/termo/ram", term("Memória RAM (RAM)", "Memória de acesso aleatório."))
	mux.HandleFunc("/termo/missing", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSite(srv *httptest.Server) Site {
	return Site{
		Name:         "ditech",
		StartURL:     srv.URL + "/",
		LinkSelector: "#content li > a[href]",
		Extract:      ExtractDitech,
	}
}

func TestCrawlerFollowsLinksAndExtracts(t *testing.T) {
	srv := newGlossaryServer(t)
	sink := &recordingSink{}
	c := NewCrawler(Config{Parallelism: 2}, sink, nil, zap.NewNop())

	stats, err := c.Run(context.Background(), []Site{testSite(srv)})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Cache", "Memória ram"}, sink.terms())
	assert.Equal(t, int64(3), stats.Pages)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.Records)
	assert.Zero(t, stats.Archived)
}

func TestCrawlerArchivesPages(t *testing.T) {
	srv := newGlossaryServer(t)
	archive := new(mockArchive)
	archive.On("PutObject", mock.Anything, mock.MatchedBy(func(p string) bool {
		return len(p) > len("ditech/") && p[:len("ditech/")] == "ditech/"
	}), "text/html; charset=utf-8", mock.AnythingOfType("string")).Return("file:///archive", nil)

	c := NewCrawler(Config{}, &recordingSink{}, archive, nil)
	stats, err := c.Run(context.Background(), []Site{testSite(srv)})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Archived)
	archive.AssertNumberOfCalls(t, "PutObject", 3)
	archive.AssertCalled(t, "PutObject", mock.Anything, ArchivePath("ditech", srv.URL+"/termo/cache"),
		"text/html; charset=utf-8", mock.AnythingOfType("string"))
}

func TestCrawlerArchivesPageBodies(t *testing.T) {
	srv := newGlossaryServer(t)
	archive := memstorage.NewBlobStore()

	c := NewCrawler(Config{}, &recordingSink{}, archive, zap.NewNop())
	_, err := c.Run(context.Background(), []Site{testSite(srv)})
	require.NoError(t, err)

	obj, ok := archive.Get(ArchivePath("ditech", srv.URL+"/termo/ram"))
	require.True(t, ok)
	assert.Contains(t, string(obj.Data), "Memória RAM (RAM)")
	assert.Len(t, archive.Paths(), 3)
}

func TestCrawlerKeepsGoingWhenArchiveFails(t *testing.T) {
	srv := newGlossaryServer(t)
	archive := new(mockArchive)
	archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))

	sink := &recordingSink{}
	c := NewCrawler(Config{}, sink, archive, nil)
	stats, err := c.Run(context.Background(), []Site{testSite(srv)})
	require.NoError(t, err)
	assert.Zero(t, stats.Archived)
	assert.Len(t, sink.terms(), 2)
}

func TestCrawlerSinglePageSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, douglasPage)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	c := NewCrawler(Config{}, sink, nil, nil)
	site := Site{Name: "douglasgaspar", StartURL: srv.URL, Extract: ExtractDouglasGaspar}
	stats, err := c.Run(context.Background(), []Site{site})
	require.NoError(t, err)
	assert.Equal(t, []string{"Api", "Bug"}, sink.terms())
	assert.Equal(t, int64(1), stats.Pages)
}

func TestCrawlerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCrawler(Config{}, &recordingSink{}, nil, nil)
	_, err := c.Run(ctx, []Site{{Name: "x", StartURL: "http://127.0.0.1:1", Extract: func(*goquery.Selection, string) []glossary.Record { return nil }}})
	assert.ErrorIs(t, err, context.Canceled)
}
