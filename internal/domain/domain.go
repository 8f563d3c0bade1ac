package domain

import "time"

// Tier is the classification bucket a listing lands in after analysis.
type Tier string

const (
	TierNew     Tier = "NEW"
	TierAutobuy Tier = "AUTOBUY"
	TierGood    Tier = "GOOD"
	TierOK      Tier = "OK"
	TierSkip    Tier = "SKIP"
	TierError   Tier = "ERROR"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierNew, TierAutobuy, TierGood, TierOK, TierSkip, TierError:
		return true
	}
	return false
}

// AlertLevel drives how loudly a deal is announced downstream.
type AlertLevel string

const (
	AlertGold AlertLevel = "GOLD"
	AlertHigh AlertLevel = "HIGH"
	AlertInfo AlertLevel = "INFO"
)

// Grading companies accepted by the marketplace filter, normalized.
const (
	CompanyPSA = "PSA"
	CompanyBGS = "BGS"
)

const (
	CategoryCard   = "Card"
	CategoryBox    = "Box"
	CategoryBundle = "Bundle"
)

const (
	CurrencySOL  = "SOL"
	CurrencyUSDC = "USDC"
)

// RawListing is one validated offer straight off the marketplace feed,
// before any enrichment.
type RawListing struct {
	ListingID      string
	Name           string
	Grade          string
	GradeNum       float64
	Category       string
	InsuredValue   float64
	GradingCompany string
	GradingID      string
	ImgURL         string
	TokenMint      string
	PriceAmount    float64
	PriceCurrency  string
	ListedAt       time.Time
}

// RawStatus is the marketplace's answer to a single-token status check.
type RawStatus struct {
	TokenMint  string
	ListStatus string
	Price      float64
}

// Listed reports whether the marketplace still considers the token for sale.
func (s *RawStatus) Listed() bool {
	return s != nil && s.ListStatus == "listed"
}

// Valuation is the external fair-value estimate for one cert+grade+company
// combination. Independent of any single listing.
type Valuation struct {
	AssetID    string  `json:"asset_id"`
	Value      float64 `json:"value"`
	AvgPrice   float64 `json:"avg_price"`
	Supply     int     `json:"supply"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Confidence float64 `json:"confidence"`
}

// Listing is the stored record: identity and descriptive fields are
// write-once; enrichment, tier and liveness are the only mutable parts.
type Listing struct {
	ListingID      string    `json:"listing_id"`
	Name           string    `json:"name"`
	Grade          string    `json:"grade"`
	GradeNum       float64   `json:"grade_num"`
	Category       string    `json:"category"`
	InsuredValue   float64   `json:"insured_value"`
	GradingCompany string    `json:"grading_company"`
	GradingID      string    `json:"grading_id"`
	ImgURL         string    `json:"img_url"`
	TokenMint      string    `json:"token_mint"`
	PriceAmount    float64   `json:"price_amount"`
	PriceCurrency  string    `json:"price_currency"`
	ListedAt       time.Time `json:"listed_at"`

	AssetID        *string  `json:"asset_id,omitempty"`
	Value          *float64 `json:"value,omitempty"`
	AvgSalePrice   *float64 `json:"avg_sale_price,omitempty"`
	Supply         *int     `json:"supply,omitempty"`
	ValueLower     *float64 `json:"value_lower,omitempty"`
	ValueUpper     *float64 `json:"value_upper,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Tier           Tier     `json:"tier"`
	IsListed       bool     `json:"is_listed"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
}

// Enriched reports whether a prior cycle already attached valuation data.
func (l *Listing) Enriched() bool {
	return l.Value != nil
}

// CachedValuation rebuilds a Valuation from the listing's stored enrichment
// fields. Only meaningful when Enriched() is true.
func (l *Listing) CachedValuation() *Valuation {
	v := &Valuation{}
	if l.AssetID != nil {
		v.AssetID = *l.AssetID
	}
	if l.Value != nil {
		v.Value = *l.Value
	}
	if l.AvgSalePrice != nil {
		v.AvgPrice = *l.AvgSalePrice
	}
	if l.Supply != nil {
		v.Supply = *l.Supply
	}
	if l.ValueLower != nil {
		v.LowerBound = *l.ValueLower
	}
	if l.ValueUpper != nil {
		v.UpperBound = *l.ValueUpper
	}
	if l.Confidence != nil {
		v.Confidence = *l.Confidence
	}
	return v
}

// FromRaw builds a fresh store record out of a feed item.
func FromRaw(r *RawListing) *Listing {
	return &Listing{
		ListingID:      r.ListingID,
		Name:           r.Name,
		Grade:          r.Grade,
		GradeNum:       r.GradeNum,
		Category:       r.Category,
		InsuredValue:   r.InsuredValue,
		GradingCompany: r.GradingCompany,
		GradingID:      r.GradingID,
		ImgURL:         r.ImgURL,
		TokenMint:      r.TokenMint,
		PriceAmount:    r.PriceAmount,
		PriceCurrency:  r.PriceCurrency,
		ListedAt:       r.ListedAt,
		Tier:           TierNew,
		IsListed:       true,
	}
}

// Notification is the sink payload handed to the presentation layer.
type Notification struct {
	ID            string
	Listing       *Listing
	Valuation     *Valuation
	Tier          Tier
	AlertLevel    AlertLevel
	PriceUSD      float64
	PriceSOL      float64
	DifferenceStr string
	Duration      time.Duration
}
