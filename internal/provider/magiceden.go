package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	magicEdenIdxBaseURL    = "https://api-mainnet.magiceden.us/idxv2"
	magicEdenTokensBaseURL = "https://api-mainnet.magiceden.dev/v2/tokens"

	feedPageLimit = 100
)

// ErrNotFound signals a token the marketplace no longer knows about. It is an
// expected terminal answer, not a failure.
var ErrNotFound = errors.New("token not found on marketplace")

// Cards whose names contain these keywords are never worth analyzing.
var blacklistedKeywords = []string{"black star", "sticker", "stickers"}

var gradeNumberPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// MagicEdenClient reads the collection's listing feed and single-token
// status. All fetch paths share the same domain filter, blacklist and
// grading-company normalization.
type MagicEdenClient struct {
	client     *http.Client
	idxBaseURL string
	tokensURL  string
	collection string
	tracer     trace.Tracer
	limiter    *RateLimiter
	backoff    Backoff
	pageDelay  time.Duration
}

func NewMagicEdenClient(tracer trace.Tracer, collection string) *MagicEdenClient {
	return &MagicEdenClient{
		client:     &http.Client{Timeout: 20 * time.Second},
		idxBaseURL: magicEdenIdxBaseURL,
		tokensURL:  magicEdenTokensBaseURL,
		collection: collection,
		tracer:     tracer,
		limiter:    NewRateLimiter(10, 600*time.Millisecond),
		backoff:    DefaultBackoff(),
		pageDelay:  2 * time.Second,
	}
}

type meAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type meListing struct {
	ID          string        `json:"id"`
	Content     string        `json:"content"`
	Img         string        `json:"img"`
	MintAddress string        `json:"mintAddress"`
	Price       float64       `json:"price"`
	UpdatedAt   string        `json:"updatedAt"`
	Attributes  []meAttribute `json:"attributes"`
}

type meFeedResponse struct {
	Results []meListing `json:"results"`
}

// FetchRecent returns the newest page of validated listings. Exhausted
// retries yield an empty slice; the poll loop treats that as "nothing new".
func (c *MagicEdenClient) FetchRecent(ctx context.Context) ([]*domain.RawListing, error) {
	_, span := c.tracer.Start(ctx, "magiceden.fetch-recent")
	defer span.End()

	raw, err := c.fetchFeedPage(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetch recent listings: %w", err)
	}

	listings := make([]*domain.RawListing, 0, len(raw))
	for i := range raw {
		if l := processFeedListing(&raw[i]); l != nil {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

// FetchAllPaginated walks the whole feed with the `after` cursor until a
// short page signals end-of-data. Intended for one-shot bulk syncs only.
func (c *MagicEdenClient) FetchAllPaginated(ctx context.Context) ([]*domain.RawListing, error) {
	_, span := c.tracer.Start(ctx, "magiceden.fetch-all-paginated")
	defer span.End()

	var all []*domain.RawListing
	after := ""

	for page := 1; ; page++ {
		raw, err := c.fetchFeedPage(ctx, after)
		if err != nil {
			return all, fmt.Errorf("paginated fetch page %d: %w", page, err)
		}
		if len(raw) == 0 {
			break
		}

		for i := range raw {
			if l := processFeedListing(&raw[i]); l != nil {
				all = append(all, l)
			}
		}

		last := raw[len(raw)-1].ID
		if last == "" || last == after {
			log.Printf("pagination cursor %q did not advance, stopping", after)
			break
		}
		after = last

		if len(raw) < feedPageLimit {
			break
		}
		if err := c.backoff.Sleep(ctx, c.pageDelay); err != nil {
			return all, err
		}
	}
	return all, nil
}

// CheckStatus fetches one token's current marketplace state. A 404 returns
// ErrNotFound; retry exhaustion returns the transport error. The reaper
// treats both the same way as "not listed".
func (c *MagicEdenClient) CheckStatus(ctx context.Context, mintAddress string) (*domain.RawStatus, error) {
	_, span := c.tracer.Start(ctx, "magiceden.check-status")
	defer span.End()

	reqURL := c.tokensURL + "/" + mintAddress

	var lastErr error
	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Sleep(ctx, c.backoff.Delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		body, status, err := c.doGet(ctx, reqURL)
		if err != nil {
			lastErr = err
			log.Printf("status check for %s failed (attempt %d/%d): %v", mintAddress, attempt+1, c.backoff.MaxAttempts, err)
			continue
		}
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("marketplace API error %d", status)
			log.Printf("status check for %s got %d (attempt %d/%d)", mintAddress, status, attempt+1, c.backoff.MaxAttempts)
			continue
		}

		var token struct {
			MintAddress string  `json:"mintAddress"`
			ListStatus  string  `json:"listStatus"`
			Price       float64 `json:"price"`
		}
		if err := json.Unmarshal(body, &token); err != nil {
			lastErr = fmt.Errorf("parse token status: %w", err)
			continue
		}
		return &domain.RawStatus{
			TokenMint:  token.MintAddress,
			ListStatus: token.ListStatus,
			Price:      token.Price,
		}, nil
	}
	return nil, fmt.Errorf("status check for %s exhausted retries: %w", mintAddress, lastErr)
}

func (c *MagicEdenClient) fetchFeedPage(ctx context.Context, after string) ([]meListing, error) {
	params := url.Values{}
	params.Set("collectionSymbol", c.collection)
	params.Set("limit", strconv.Itoa(feedPageLimit))
	params.Set("direction", "1")
	params.Set("field", "2")
	params.Set("mode", "all")
	params.Set("agg", "3")
	params.Set("compressionMode", "both")
	params.Set("token22StandardFilter", "1")
	params.Set("mplCoreStandardFilter", "1")
	params.Set("attributes", feedAttributeFilter())
	if after != "" {
		params.Set("after", after)
	}

	reqURL := c.idxBaseURL + "/getListedNftsByCollectionSymbol?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Sleep(ctx, c.backoff.Delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		body, status, err := c.doGet(ctx, reqURL)
		if err != nil {
			lastErr = err
			log.Printf("feed fetch failed (attempt %d/%d): %v", attempt+1, c.backoff.MaxAttempts, err)
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("marketplace API error %d", status)
			log.Printf("feed fetch got %d (attempt %d/%d)", status, attempt+1, c.backoff.MaxAttempts)
			continue
		}

		// The endpoint answers either {"results": [...]} or a bare array.
		var wrapped meFeedResponse
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Results != nil {
			return wrapped.Results, nil
		}
		var bare []meListing
		if err := json.Unmarshal(body, &bare); err == nil {
			return bare, nil
		}
		lastErr = errors.New("unexpected feed payload shape")
	}

	log.Printf("feed fetch exhausted retries: %v", lastErr)
	return nil, nil
}

func (c *MagicEdenClient) doGet(ctx context.Context, reqURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36")
	req.Header.Set("Origin", "https://magiceden.io")
	req.Header.Set("Referer", "https://magiceden.io/")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func feedAttributeFilter() string {
	filter := []map[string]any{
		{"attributes": []map[string]string{
			{"traitType": "Category", "value": "Pokemon"},
		}},
		{"attributes": []map[string]string{
			{"traitType": "Grading Company", "value": "PSA"},
			{"traitType": "Grading Company", "value": "Beckett"},
			{"traitType": "Grading Company", "value": "BGS"},
		}},
	}
	b, _ := json.Marshal(filter)
	return string(b)
}

func attributeValue(attrs []meAttribute, trait string) string {
	for _, a := range attrs {
		if a.TraitType != trait {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// processFeedListing validates a raw feed item against the domain filter and
// returns nil for anything that should never enter the pipeline.
func processFeedListing(raw *meListing) *domain.RawListing {
	name := raw.Content
	if name == "" {
		name = "Unknown"
	}

	lower := strings.ToLower(name)
	for _, kw := range blacklistedKeywords {
		if strings.Contains(lower, kw) {
			return nil
		}
	}

	company := normalizeGradingCompany(attributeValue(raw.Attributes, "Grading Company"))
	if company == "" {
		return nil
	}

	category := domain.CategoryCard
	if strings.Contains(name, "Bundle") {
		category = domain.CategoryBundle
	} else if strings.Contains(name, "Box") {
		category = domain.CategoryBox
	}

	grade := attributeValue(raw.Attributes, "The Grade")
	certID := attributeValue(raw.Attributes, "Grading ID")

	gradeNum, _ := strconv.ParseFloat(attributeValue(raw.Attributes, "GradeNum"), 64)
	// "The Grade" often mixes the number with text ("GEM-MT 10"); the number
	// extracted from it wins over the GradeNum attribute when they disagree.
	if grade != "" {
		if m := gradeNumberPattern.FindString(grade); m != "" {
			if fromStr, err := strconv.ParseFloat(m, 64); err == nil && fromStr != gradeNum {
				gradeNum = fromStr
				grade = m
			}
		}
	}

	insuredValue, _ := strconv.ParseFloat(attributeValue(raw.Attributes, "Insured Value"), 64)

	if certID == "" || name == "" || grade == "" {
		return nil
	}
	if raw.Price <= 0 {
		return nil
	}

	listedAt, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		listedAt = time.Now().UTC()
	}

	return &domain.RawListing{
		ListingID:      raw.ID,
		Name:           name,
		Grade:          grade,
		GradeNum:       gradeNum,
		Category:       category,
		InsuredValue:   insuredValue,
		GradingCompany: company,
		GradingID:      certID,
		ImgURL:         raw.Img,
		TokenMint:      raw.MintAddress,
		PriceAmount:    raw.Price,
		PriceCurrency:  domain.CurrencySOL,
		ListedAt:       listedAt,
	}
}

// normalizeGradingCompany maps feed aliases to the canonical short code, or
// returns "" for companies the pipeline does not accept.
func normalizeGradingCompany(company string) string {
	switch strings.ToUpper(strings.TrimSpace(company)) {
	case "PSA":
		return domain.CompanyPSA
	case "BECKETT", "BGS":
		return domain.CompanyBGS
	default:
		return ""
	}
}
