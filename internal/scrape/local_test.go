package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

const articleHTML = `<html><head><title>自家歯牙移植について</title><script>var x = 1;</script></head>
<body><header>クリニック名</header><nav>メニュー</nav>
<article><h1>自家歯牙移植とは</h1><p>親知らずを抜歯して、失った歯の部位に移植する治療法です。</p>
<p>歯根膜が残っていることが成功の条件です。</p></article>
<footer>Copyright 2024</footer></body></html>`

func TestLocalScraper_ExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	page, err := NewLocalScraper("test-agent").Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Source)
	assert.Equal(t, "自家歯牙移植について", page.Title)
	assert.Contains(t, page.Text, "自家歯牙移植とは")
	assert.Contains(t, page.Text, "歯根膜が残っていること")
	assert.NotContains(t, page.Text, "メニュー")
	assert.NotContains(t, page.Text, "クリニック名")
	assert.NotContains(t, page.Text, "Copyright")
	assert.NotContains(t, page.Text, "var x")
}

func TestLocalScraper_ShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().String(articleHTML)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	page, err := NewLocalScraper("").Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "親知らずを抜歯して")
}

func TestLocalScraper_Cloudflare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	_, err := NewLocalScraper("").Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
}

func TestLocalScraper_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(strings.Repeat("x", 200)))
	}))
	defer srv.Close()

	_, err := NewLocalScraper("").Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLocalScraper_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := NewLocalScraper("").Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty page")
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"clean", 200, http.Header{}, "<html><body>" + strings.Repeat("ok ", 1000) + "</body></html>", BlockNone},
		{"cloudflare header", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge body", 200, http.Header{}, "Checking your browser before accessing", BlockCloudflare},
		{"captcha", 200, http.Header{}, `<div class="g-recaptcha"></div>`, BlockCaptcha},
		{"js shell", 200, http.Header{}, `<noscript>Please enable JavaScript</noscript>`, BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<meta http-equiv="refresh" content="0;url=/x">`, BlockJSShell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, kind := DetectBlock(tt.status, tt.header, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestExtractText(t *testing.T) {
	title, text, err := ExtractText(strings.NewReader(`<html><head><title> T </title></head><body><div>a <b>b</b></div><ul><li>one</li><li>two</li></ul></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "T", title)
	assert.Equal(t, "a b\none\ntwo", text)
}
