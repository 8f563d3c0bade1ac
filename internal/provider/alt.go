package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	altGraphQLURL = "https://alt-platform-server.production.internal.onlyalt.com/graphql/"

	// Above this population the market is liquid enough for a windowed
	// daily average; below it, thin-market smoothing over the last sales.
	highSupplyThreshold = 3000
	avgWindowDays       = 15
	thinMarketSales     = 4
)

const certQuery = `query Cert($certNumber: String!) { cert(certNumber: $certNumber) { asset { id name __typename } __typename } }`

const assetDetailsQuery = `query AssetDetails($id: ID!, $tsFilter: TimeSeriesFilter!) {
  asset(id: $id) {
    altValueInfo(tsFilter: $tsFilter) {
      currentAltValue
      confidenceData {
        currentConfidenceMetric
        currentErrorLowerBound
        currentErrorUpperBound
        __typename
      }
      __typename
    }
    cardPops {
      gradingCompany
      gradeNumber
      count
      __typename
    }
    __typename
  }
}`

const marketTransactionsQuery = `query AssetMarketTransactions($id: ID!, $marketTransactionFilter: MarketTransactionFilter!) {
  asset(id: $id) {
    marketTransactions(marketTransactionFilter: $marketTransactionFilter) {
      date
      price
      __typename
    }
    __typename
  }
}`

// AltClient resolves certificate numbers to market-value estimates on the
// ALT platform. A nil Valuation with a nil error means the cert simply is
// not on the platform; callers must treat that as a normal outcome.
type AltClient struct {
	client    *http.Client
	baseURL   string
	authToken string
	cookie    string
	tracer    trace.Tracer
	limiter   *RateLimiter
	backoff   Backoff
	now       func() time.Time

	mu       sync.Mutex
	assetIDs map[string]string // cert number -> asset id, immutable mapping
}

func NewAltClient(tracer trace.Tracer, authToken, cookie string) *AltClient {
	return &AltClient{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   altGraphQLURL,
		authToken: authToken,
		cookie:    cookie,
		tracer:    tracer,
		limiter:   NewRateLimiter(10, 300*time.Millisecond),
		backoff:   DefaultBackoff(),
		now:       time.Now,
		assetIDs:  make(map[string]string),
	}
}

type altAssetRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type altCertResponse struct {
	Data struct {
		Cert *struct {
			Asset *altAssetRef `json:"asset"`
		} `json:"cert"`
	} `json:"data"`
}

type altCardPop struct {
	GradingCompany string  `json:"gradingCompany"`
	GradeNumber    float64 `json:"gradeNumber"`
	Count          int     `json:"count"`
}

type altDetailsResponse struct {
	Data struct {
		Asset *struct {
			AltValueInfo *struct {
				CurrentAltValue float64 `json:"currentAltValue"`
				ConfidenceData  *struct {
					CurrentConfidenceMetric float64 `json:"currentConfidenceMetric"`
					CurrentErrorLowerBound  float64 `json:"currentErrorLowerBound"`
					CurrentErrorUpperBound  float64 `json:"currentErrorUpperBound"`
				} `json:"confidenceData"`
			} `json:"altValueInfo"`
			CardPops []altCardPop `json:"cardPops"`
		} `json:"asset"`
	} `json:"data"`
}

type altTransaction struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type altTransactionsResponse struct {
	Data struct {
		Asset *struct {
			MarketTransactions []altTransaction `json:"marketTransactions"`
		} `json:"asset"`
	} `json:"data"`
}

// GetValuation runs the two-step lookup: cert -> asset id (cached forever),
// then details and market transactions fetched concurrently.
func (c *AltClient) GetValuation(ctx context.Context, certID string, gradeNum float64, company string) (*domain.Valuation, error) {
	_, span := c.tracer.Start(ctx, "alt.get-valuation")
	defer span.End()

	assetID, err := c.resolveAssetID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if assetID == "" {
		// Cert not on the platform. Expected, not an error.
		return nil, nil
	}

	grade := fmt.Sprintf("%.1f", gradeNum)
	detailsPayload := map[string]any{
		"operationName": "AssetDetails",
		"variables": map[string]any{
			"id":       assetID,
			"tsFilter": map[string]string{"gradeNumber": grade, "gradingCompany": company},
		},
		"query": assetDetailsQuery,
	}
	transPayload := map[string]any{
		"operationName": "AssetMarketTransactions",
		"variables": map[string]any{
			"id": assetID,
			"marketTransactionFilter": map[string]any{
				"gradingCompany": company,
				"gradeNumber":    grade,
				"showSkipped":    true,
			},
		},
		"query": marketTransactionsQuery,
	}

	var lastErr error
	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Sleep(ctx, c.backoff.Delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		var (
			wg         sync.WaitGroup
			detailsRaw, transRaw []byte
			detailsErr, transErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			detailsRaw, detailsErr = c.post(ctx, detailsPayload)
		}()
		go func() {
			defer wg.Done()
			transRaw, transErr = c.post(ctx, transPayload)
		}()
		wg.Wait()

		if detailsErr != nil || transErr != nil {
			lastErr = fmt.Errorf("details: %v, transactions: %v", detailsErr, transErr)
			log.Printf("valuation fetch for asset %s failed (attempt %d/%d): %v", assetID, attempt+1, c.backoff.MaxAttempts, lastErr)
			continue
		}

		var details altDetailsResponse
		if err := json.Unmarshal(detailsRaw, &details); err != nil {
			lastErr = fmt.Errorf("parse asset details: %w", err)
			continue
		}
		var trans altTransactionsResponse
		if err := json.Unmarshal(transRaw, &trans); err != nil {
			lastErr = fmt.Errorf("parse market transactions: %w", err)
			continue
		}

		asset := details.Data.Asset
		if asset == nil {
			return nil, nil
		}

		v := &domain.Valuation{AssetID: assetID}
		if info := asset.AltValueInfo; info != nil {
			v.Value = info.CurrentAltValue
			if cd := info.ConfidenceData; cd != nil {
				v.Confidence = cd.CurrentConfidenceMetric
				v.LowerBound = cd.CurrentErrorLowerBound
				v.UpperBound = cd.CurrentErrorUpperBound
			}
		}
		for _, pop := range asset.CardPops {
			if pop.GradingCompany == company && fmt.Sprintf("%.1f", pop.GradeNumber) == grade {
				v.Supply = pop.Count
				break
			}
		}

		var txs []altTransaction
		if trans.Data.Asset != nil {
			txs = trans.Data.Asset.MarketTransactions
		}
		v.AvgPrice = averagePrice(txs, v.Supply, c.now())

		return v, nil
	}

	return nil, fmt.Errorf("valuation for cert %s exhausted retries: %w", certID, lastErr)
}

// resolveAssetID returns "" with a nil error when the cert is unknown to the
// platform; the mapping is immutable so hits are cached for process life.
func (c *AltClient) resolveAssetID(ctx context.Context, certID string) (string, error) {
	c.mu.Lock()
	if id, ok := c.assetIDs[certID]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	payload := map[string]any{
		"operationName": "Cert",
		"variables":     map[string]string{"certNumber": certID},
		"query":         certQuery,
	}

	var lastErr error
	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Sleep(ctx, c.backoff.Delay(attempt-1)); err != nil {
				return "", err
			}
		}

		raw, err := c.post(ctx, payload)
		if err != nil {
			lastErr = err
			log.Printf("cert lookup for %s failed (attempt %d/%d): %v", certID, attempt+1, c.backoff.MaxAttempts, err)
			continue
		}

		var resp altCertResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			lastErr = fmt.Errorf("parse cert response: %w", err)
			continue
		}
		if resp.Data.Cert == nil || resp.Data.Cert.Asset == nil || resp.Data.Cert.Asset.ID == "" {
			log.Printf("cert %s not found on valuation platform", certID)
			return "", nil
		}

		id := resp.Data.Cert.Asset.ID
		c.mu.Lock()
		c.assetIDs[certID] = id
		c.mu.Unlock()
		return id, nil
	}

	return "", fmt.Errorf("cert lookup for %s exhausted retries: %w", certID, lastErr)
}

func (c *AltClient) post(ctx context.Context, payload map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", "https://app.alt.xyz")
	req.Header.Set("Referer", "https://app.alt.xyz/")
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("valuation API error %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// averagePrice picks the smoothing strategy by liquidity. Liquid cards
// (supply above the threshold) get a 15-day average of daily averages so a
// single high-volume day cannot skew the figure; thin markets average the
// most recent sales instead.
func averagePrice(txs []altTransaction, supply int, now time.Time) float64 {
	if supply > highSupplyThreshold {
		cutoff := now.AddDate(0, 0, -avgWindowDays)
		daily := make(map[string][]float64)
		for _, tx := range txs {
			day := tx.Date
			if len(day) > 10 {
				day = day[:10]
			}
			t, err := time.Parse("2006-01-02", day)
			if err != nil || t.Before(cutoff) {
				continue
			}
			daily[day] = append(daily[day], tx.Price)
		}
		if len(daily) == 0 {
			return 0
		}
		var sum float64
		for _, prices := range daily {
			var daySum float64
			for _, p := range prices {
				daySum += p
			}
			sum += daySum / float64(len(prices))
		}
		return sum / float64(len(daily))
	}

	n := thinMarketSales
	if n > len(txs) {
		n = len(txs)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, tx := range txs[:n] {
		sum += tx.Price
	}
	return sum / float64(n)
}
