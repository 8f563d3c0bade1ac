package domain

import (
	"testing"
	"time"
)

func TestTierIsValid(t *testing.T) {
	for _, tier := range []Tier{TierNew, TierAutobuy, TierGood, TierOK, TierSkip, TierError} {
		if !tier.IsValid() {
			t.Errorf("expected %s to be valid", tier)
		}
	}
	if Tier("MAYBE").IsValid() {
		t.Error("expected MAYBE to be invalid")
	}
}

func TestRawStatusListed(t *testing.T) {
	var s *RawStatus
	if s.Listed() {
		t.Error("nil status should not be listed")
	}
	if (&RawStatus{ListStatus: "unlisted"}).Listed() {
		t.Error("unlisted status should not be listed")
	}
	if !(&RawStatus{ListStatus: "listed"}).Listed() {
		t.Error("listed status should be listed")
	}
}

func TestFromRaw(t *testing.T) {
	raw := &RawListing{
		ListingID:      "L1",
		Name:           "Charizard Holo",
		GradeNum:       10,
		GradingCompany: CompanyPSA,
		TokenMint:      "mint1",
		PriceAmount:    2.5,
		PriceCurrency:  CurrencySOL,
		ListedAt:       time.Now(),
	}
	l := FromRaw(raw)
	if l.Tier != TierNew {
		t.Errorf("expected NEW tier, got %s", l.Tier)
	}
	if !l.IsListed {
		t.Error("expected new listing to be marked listed")
	}
	if l.Enriched() {
		t.Error("fresh listing should not be enriched")
	}
}

func TestCachedValuation(t *testing.T) {
	value := 100.0
	conf := 75.0
	supply := 4200
	asset := "a-1"
	l := &Listing{AssetID: &asset, Value: &value, Confidence: &conf, Supply: &supply}
	if !l.Enriched() {
		t.Fatal("expected enriched")
	}
	v := l.CachedValuation()
	if v.Value != 100.0 || v.Confidence != 75.0 || v.Supply != 4200 || v.AssetID != "a-1" {
		t.Errorf("unexpected cached valuation: %+v", v)
	}
	if v.AvgPrice != 0 {
		t.Errorf("missing fields should default to zero, got %v", v.AvgPrice)
	}
}
