package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"card-sniper/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Parallel()
	StartTelegramBot(context.Background(), "", 0, nil, nil)
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	n := &domain.Notification{
		Listing: &domain.Listing{
			Name:           "Charizard Holo",
			Grade:          "GEM-MT 10",
			GradingCompany: domain.CompanyPSA,
			TokenMint:      "mint-1",
			PriceAmount:    1.5,
			PriceCurrency:  domain.CurrencySOL,
		},
		Valuation:     &domain.Valuation{Value: 100, AvgPrice: 95, Confidence: 80},
		Tier:          domain.TierAutobuy,
		AlertLevel:    domain.AlertGold,
		PriceUSD:      70,
		DifferenceStr: "-30.00%",
		Duration:      1200 * time.Millisecond,
	}

	msg := formatAlert(n)
	for _, want := range []string{
		"🚨 AUTOBUY",
		"Charizard Holo (PSA GEM-MT 10)",
		"1.50 SOL ($70.00)",
		"$100.00",
		"-30.00%",
		"Processed in 1.2s",
		"magiceden.io/item-details/mint-1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatListing(t *testing.T) {
	t.Parallel()

	value, conf := 100.0, 80.0
	l := &domain.Listing{
		Name:           "Blastoise",
		Grade:          "9.5",
		GradingCompany: domain.CompanyBGS,
		TokenMint:      "mint-2",
		PriceAmount:    3,
		PriceCurrency:  domain.CurrencySOL,
		Tier:           domain.TierGood,
		IsListed:       true,
		Value:          &value,
		Confidence:     &conf,
	}

	msg := formatListing(l)
	for _, want := range []string{"Blastoise (BGS 9.5) [GOOD]", "3.00 SOL", "$100.00", "confidence 80"} {
		if !strings.Contains(msg, want) {
			t.Errorf("listing missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "No longer listed") {
		t.Error("live listing must not show delist note")
	}

	l.IsListed = false
	if !strings.Contains(formatListing(l), "No longer listed") {
		t.Error("delisted note missing")
	}
}

func TestAlertEmoji(t *testing.T) {
	t.Parallel()

	if alertEmoji(domain.AlertGold) == alertEmoji(domain.AlertInfo) {
		t.Fatal("alert levels must be visually distinct")
	}
}
