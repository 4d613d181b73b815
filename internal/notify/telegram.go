// Package notify turns notification intents into outbound messages.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

// Telegram dispatches intents as messages to a configured chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

func (t *Telegram) Send(ctx context.Context, intent feed.NotificationIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatIntent(intent))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	t.log.Debug().Str("kind", string(intent.Kind)).Msg("telegram message sent")
	return nil
}

// FormatIntent renders the plain-text message body for any intent kind.
func FormatIntent(intent feed.NotificationIntent) string {
	switch intent.Kind {
	case feed.IntentBreaking:
		return formatBreaking(intent)
	case feed.IntentDigest:
		return formatDigest(intent)
	case feed.IntentWeekly:
		return formatWeekly(intent)
	default:
		return fmt.Sprintf("Unknown notification (%s)", intent.Kind)
	}
}

func formatBreaking(intent feed.NotificationIntent) string {
	var b strings.Builder
	b.WriteString("🚨 Breaking\n\n")
	for _, item := range intent.Items {
		fmt.Fprintf(&b, "%s\n%s\nScore %.2f · %s", item.Title, item.URL, item.ImportanceScore, item.SourceName)
		if len(item.Keywords) > 0 {
			fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(item.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDigest(intent feed.NotificationIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 Daily digest — top %d\n", len(intent.Items))
	for i, item := range intent.Items {
		fmt.Fprintf(&b, "\n%d. %s (%.2f)\n   %s", i+1, item.Title, item.ImportanceScore, item.URL)
	}
	return b.String()
}

func formatWeekly(intent feed.NotificationIntent) string {
	var b strings.Builder
	b.WriteString("📊 Weekly summary\n")
	if intent.Analytics == nil {
		return b.String() + "\nNo data collected this week."
	}

	a := intent.Analytics
	fmt.Fprintf(&b, "\nItems: %d\nAverage score: %.2f\n", a.ItemCount, a.AverageScore)

	if len(a.SourceDistribution) > 0 {
		b.WriteString("\nBy source:\n")
		for _, source := range sortedKeys(a.SourceDistribution) {
			fmt.Fprintf(&b, "  %s: %d\n", source, a.SourceDistribution[source])
		}
	}
	if len(a.TopKeywords) > 0 {
		b.WriteString("\nTrending keywords:\n")
		for _, kw := range a.TopKeywords {
			fmt.Fprintf(&b, "  %s (%d)\n", kw.Keyword, kw.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
