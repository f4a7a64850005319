package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

const userAgent = "Bookie/1.0 (https://github.com/mrlokans/bookie)"

// BookQuery identifies the book to look up. Empty fields are ignored.
type BookQuery struct {
	ISBN   string
	Title  string
	Author string
}

// NewBookQuery builds a query from catalog fields. The placeholder author
// is dropped so it does not pollute searches.
func NewBookQuery(isbn *string, title, author string) BookQuery {
	q := BookQuery{Title: title, Author: author}
	if isbn != nil {
		q.ISBN = *isbn
	}
	if author == entities.UnknownAuthor {
		q.Author = ""
	}
	return q
}

// BookMetadata holds what the provider returned. Every field may be nil.
type BookMetadata struct {
	CoverURL      *string `json:"cover_url,omitempty"`
	Description   *string `json:"description,omitempty"`
	PageCount     *int    `json:"page_count,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
	Strategy      string  `json:"strategy,omitempty"` // search strategy that matched
}

// PublishedYear extracts the year from dates like "2005", "2005-03" or "2005-03-01".
func (m *BookMetadata) PublishedYear() *int {
	if m == nil || m.PublishedDate == nil || len(*m.PublishedDate) < 4 {
		return nil
	}
	y, err := strconv.Atoi((*m.PublishedDate)[:4])
	if err != nil || y <= 0 {
		return nil
	}
	return &y
}

// GoogleBooksConfig configures GoogleBooksClient.
type GoogleBooksConfig struct {
	BaseURL           string
	APIKey            string
	Language          string
	MaxResults        int
	RequestsPerSecond float64
	Timeout           time.Duration
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// GoogleBooksClient looks books up in the Google Books volumes API.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
	maxResults int
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*volumesResponse]
}

// NewGoogleBooksClient creates a client with rate limiting and a circuit breaker.
func NewGoogleBooksClient(cfg GoogleBooksConfig) *GoogleBooksClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/books/v1/volumes"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &GoogleBooksClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "?"),
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		maxResults: cfg.MaxResults,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

func newBreaker(failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[*volumesResponse] {
	return gobreaker.NewCircuitBreaker[*volumesResponse](gobreaker.Settings{
		Name:        "google-books",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

type volumesResponse struct {
	TotalItems int          `json:"totalItems"`
	Items      []volumeItem `json:"items"`
}

type volumeItem struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	PageCount     int      `json:"pageCount"`
	PublishedDate string   `json:"publishedDate"`
	ImageLinks    struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

// searchStrategy builds one query; an empty query means the strategy does
// not apply to this book.
type searchStrategy struct {
	name  string
	build func(q BookQuery) string
}

// strategies run in order and the first accepted match wins.
var strategies = []searchStrategy{
	{"isbn", func(q BookQuery) string {
		if len(q.ISBN) < 10 {
			return ""
		}
		return "isbn:" + q.ISBN
	}},
	{"exact", func(q BookQuery) string {
		if q.Title == "" {
			return ""
		}
		query := `intitle:"` + q.Title + `"`
		if q.Author != "" {
			query += ` inauthor:"` + q.Author + `"`
		}
		return query
	}},
	{"loose", func(q BookQuery) string {
		return strings.TrimSpace(q.Title + " " + q.Author)
	}},
	{"main_title", func(q BookQuery) string {
		main := MainTitle(q.Title)
		if main == "" {
			return ""
		}
		return "intitle:" + main
	}},
}

// Enrich runs the search strategies until one returns an acceptable volume.
// Failed strategies are logged and skipped; nil, nil means nothing matched.
// Only context cancellation is returned as an error.
func (c *GoogleBooksClient) Enrich(ctx context.Context, q BookQuery) (*BookMetadata, error) {
	q.Title = strings.TrimSpace(q.Title)
	q.Author = strings.TrimSpace(q.Author)

	for _, s := range strategies {
		query := s.build(q)
		if query == "" {
			continue
		}

		resp, err := c.search(ctx, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.Warn().Err(err).Str("strategy", s.name).Str("title", q.Title).Msg("google books search failed")
			continue
		}

		for _, item := range resp.Items {
			if acceptMatch(item.VolumeInfo, q) {
				meta := toMetadata(item.VolumeInfo)
				meta.Strategy = s.name
				logging.Debug().Str("strategy", s.name).Str("title", q.Title).Str("volume_id", item.ID).Msg("google books match")
				return meta, nil
			}
		}
	}
	return nil, nil
}

// search issues one volumes query through the limiter and breaker.
func (c *GoogleBooksClient) search(ctx context.Context, query string) (*volumesResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	if c.language != "" {
		params.Set("langRestrict", c.language)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	searchURL := c.baseURL + "?" + params.Encode()

	return c.breaker.Execute(func() (*volumesResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("search volumes: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		var body volumesResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &body, nil
	})
}

// acceptMatch trusts any volume returned for an ISBN lookup; otherwise the
// title or one author has to match loosely.
func acceptMatch(info volumeInfo, q BookQuery) bool {
	if q.ISBN != "" {
		return true
	}

	wanted := strings.ToLower(q.Title)
	got := strings.ToLower(strings.TrimSpace(info.Title))
	if wanted != "" && got != "" && (strings.Contains(got, wanted) || strings.Contains(wanted, got)) {
		return true
	}

	author := foldName(q.Author)
	if author == "" {
		return false
	}
	for _, a := range info.Authors {
		candidate := foldName(a)
		if candidate != "" && (strings.Contains(candidate, author) || strings.Contains(author, candidate)) {
			return true
		}
	}
	return false
}

func toMetadata(info volumeInfo) *BookMetadata {
	meta := &BookMetadata{}

	cover := info.ImageLinks.Thumbnail
	if cover == "" {
		cover = info.ImageLinks.SmallThumbnail
	}
	if cover != "" {
		if strings.HasPrefix(cover, "http://") {
			cover = "https://" + strings.TrimPrefix(cover, "http://")
		}
		meta.CoverURL = &cover
	}
	if info.Description != "" {
		desc := info.Description
		meta.Description = &desc
	}
	if info.PageCount > 0 {
		pages := info.PageCount
		meta.PageCount = &pages
	}
	if info.PublishedDate != "" {
		published := info.PublishedDate
		meta.PublishedDate = &published
	}
	return meta
}

// MainTitle drops subtitles and series markers: everything from the first
// comma or colon on.
func MainTitle(title string) string {
	if i := strings.IndexAny(title, ",:"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
