// Package pubmed is a client for the NCBI E-utilities search and fetch
// endpoints, the PMC ID converter and PMC full-text XML.
package pubmed

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/internal/fetcher"
)

// Client defines the PubMed operations used by the harvester and indexer.
type Client interface {
	// Search returns PMIDs matching term, newest first.
	Search(ctx context.Context, term string, maxResults int) ([]string, error)
	// Fetch returns parsed records for the given PMIDs.
	Fetch(ctx context.Context, pmids []string) ([]Article, error)
	// PMCID resolves the open-access PMC identifier for a PMID. It returns
	// "" without error when the paper has none.
	PMCID(ctx context.Context, pmid string) (string, error)
	// FullText fetches and sections a PMC article.
	FullText(ctx context.Context, pmcid string) (*FullText, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the E-utilities base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithIDConvURL overrides the PMC ID converter URL.
func WithIDConvURL(u string) Option {
	return func(c *httpClient) { c.idconvURL = u }
}

// WithAPIKey sets the NCBI API key, which raises the allowed request rate.
func WithAPIKey(key string) Option {
	return func(c *httpClient) { c.apiKey = key }
}

// WithIdentity sets the tool and email parameters NCBI asks callers to send.
func WithIdentity(tool, email string) Option {
	return func(c *httpClient) {
		c.tool = tool
		c.email = email
	}
}

type httpClient struct {
	fetch     fetcher.Fetcher
	baseURL   string
	idconvURL string
	apiKey    string
	tool      string
	email     string
}

// NewClient creates a PubMed client that issues requests through f.
func NewClient(f fetcher.Fetcher, opts ...Option) Client {
	c := &httpClient{
		fetch:     f,
		baseURL:   "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		idconvURL: "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) withCommon(params url.Values) url.Values {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	return params
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (c *httpClient) Search(ctx context.Context, term string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	params := c.withCommon(url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {strconv.Itoa(maxResults)},
		"retmode": {"json"},
		"sort":    {"pub_date"},
	})
	body, err := c.fetch.Get(ctx, c.baseURL+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: esearch")
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "pubmed: decode esearch")
	}
	return resp.Result.IDList, nil
}

func (c *httpClient) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	params := c.withCommon(url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	})
	body, err := c.fetch.Get(ctx, c.baseURL+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: efetch")
	}
	return ParseArticles(body)
}

type idconvResponse struct {
	Status  string `json:"status"`
	Records []struct {
		PMID   string `json:"pmid"`
		PMCID  string `json:"pmcid"`
		ErrMsg string `json:"errmsg"`
	} `json:"records"`
}

func (c *httpClient) PMCID(ctx context.Context, pmid string) (string, error) {
	params := c.withCommon(url.Values{
		"ids":    {pmid},
		"format": {"json"},
	})
	body, err := c.fetch.Get(ctx, c.idconvURL+"?"+params.Encode())
	if err != nil {
		return "", eris.Wrap(err, "pubmed: idconv")
	}

	var resp idconvResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "pubmed: decode idconv")
	}
	if len(resp.Records) == 0 {
		return "", nil
	}
	return resp.Records[0].PMCID, nil
}

func (c *httpClient) FullText(ctx context.Context, pmcid string) (*FullText, error) {
	params := c.withCommon(url.Values{
		"db":      {"pmc"},
		"id":      {strings.TrimPrefix(strings.ToUpper(pmcid), "PMC")},
		"rettype": {"xml"},
	})
	body, err := c.fetch.Get(ctx, c.baseURL+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: pmc efetch")
	}
	ft, err := ParseFullText(body)
	if err != nil {
		return nil, err
	}
	ft.PMCID = pmcid
	return ft, nil
}
