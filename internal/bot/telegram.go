package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"card-sniper/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type ListingAPI interface {
	GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error)
	GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error)
	Recheck(ctx context.Context, tokenMint string) (*domain.Listing, error)
}

type NotificationSource interface {
	Next(ctx context.Context) (*domain.Notification, error)
	TaskDone()
}

// StartTelegramBot wires the alert consumer and the command surface. Without
// a token it is a no-op so local runs work without Telegram credentials;
// without a chat id the commands work but deal alerts stay off.
func StartTelegramBot(ctx context.Context, token string, chatID int64, listings ListingAPI, sink NotificationSource) {
	if token == "" {
		log.Println("Telegram bot token not set, skipping bot startup")
		return
	}

	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/check", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /check <token mint>")
		}
		l, err := listings.GetByMint(context.Background(), args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("No listing for mint %s", args[0]))
		}
		return c.Send(formatListing(l))
	})

	b.Handle("/recheck", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /recheck <token mint>")
		}
		l, err := listings.Recheck(context.Background(), args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("Recheck failed for %s: %v", args[0], err))
		}
		return c.Send("Rechecked:\n" + formatListing(l))
	})

	b.Handle("/deals", func(c tele.Context) error {
		tier := domain.TierGood
		if args := c.Args(); len(args) > 0 {
			tier = domain.Tier(strings.ToUpper(args[0]))
		}
		found, err := listings.GetActive(context.Background(), tier, 10)
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		if len(found) == 0 {
			return c.Send(fmt.Sprintf("No live %s listings right now", tier))
		}
		var sb strings.Builder
		for _, l := range found {
			sb.WriteString(formatListing(l))
			sb.WriteString("\n\n")
		}
		return c.Send(sb.String())
	})

	go b.Start()
	if chatID == 0 {
		log.Println("Telegram chat id not set, deal alerts disabled")
	} else {
		go consumeAlerts(ctx, b, tele.ChatID(chatID), sink)
	}

	log.Println("Telegram bot started")
}

// consumeAlerts is the sink's single consumer; delivery order matches
// enqueue order.
func consumeAlerts(ctx context.Context, b *tele.Bot, chat tele.ChatID, sink NotificationSource) {
	for {
		n, err := sink.Next(ctx)
		if err != nil {
			return
		}
		if _, err := b.Send(chat, formatAlert(n)); err != nil {
			log.Printf("sending alert %s failed: %v", n.ID, err)
		}
		sink.TaskDone()
	}
}

func alertEmoji(level domain.AlertLevel) string {
	switch level {
	case domain.AlertGold:
		return "🚨"
	case domain.AlertHigh:
		return "🔥"
	default:
		return "💡"
	}
}

func formatAlert(n *domain.Notification) string {
	l := n.Listing
	return fmt.Sprintf(
		"%s %s: %s (%s %s)\nPrice: %.2f %s ($%.2f)\nValue: $%.2f (avg sale $%.2f, confidence %.0f)\nDiff: %s\nProcessed in %s\nhttps://magiceden.io/item-details/%s",
		alertEmoji(n.AlertLevel), n.Tier, l.Name, l.GradingCompany, l.Grade,
		l.PriceAmount, l.PriceCurrency, n.PriceUSD,
		n.Valuation.Value, n.Valuation.AvgPrice, n.Valuation.Confidence,
		n.DifferenceStr,
		n.Duration.Round(time.Millisecond),
		l.TokenMint,
	)
}

func formatListing(l *domain.Listing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s %s) [%s]", l.Name, l.GradingCompany, l.Grade, l.Tier)
	fmt.Fprintf(&sb, "\nPrice: %.2f %s", l.PriceAmount, l.PriceCurrency)
	if l.Value != nil {
		fmt.Fprintf(&sb, "\nValue: $%.2f", *l.Value)
	}
	if l.Confidence != nil {
		fmt.Fprintf(&sb, " (confidence %.0f)", *l.Confidence)
	}
	if !l.IsListed {
		sb.WriteString("\nNo longer listed")
	}
	fmt.Fprintf(&sb, "\nhttps://magiceden.io/item-details/%s", l.TokenMint)
	return sb.String()
}
