package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/registry"
	"github.com/RaghavSood/aurorabridge/session"
	"github.com/RaghavSood/aurorabridge/transfers"
)

const requestTimeout = 30 * time.Second

// Tokens is the token registry. *registry.Registry satisfies it.
type Tokens interface {
	RefreshAll(ctx context.Context, sess session.Session) (map[string]registry.Token, error)
	AddCustomToken(ctx context.Context, addr string) error
}

// History lists tracked transfers. *tracker.Tracker satisfies it.
type History interface {
	Recent(ctx context.Context, limit, offset int64) ([]transfers.Transfer, error)
}

// Sender delivers messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	adminID int64
	sess    session.Session
	tokens  Tokens
	history History
}

func New(token string, adminID int64, sess session.Session, tokens Tokens, history History) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)
	b := newBot(api, adminID, sess, tokens, history)
	b.api = api
	return b, nil
}

func newBot(sender Sender, adminID int64, sess session.Session, tokens Tokens, history History) *Bot {
	return &Bot{
		sender:  sender,
		adminID: adminID,
		sess:    sess,
		tokens:  tokens,
		history: history,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if update.Message.From.ID != b.adminID {
				b.reply(update.Message, "You are not authorized to use this bot.")
				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	b.reply(msg, b.respond(ctx, msg.Command(), msg.CommandArguments()))
}

func (b *Bot) respond(ctx context.Context, command, args string) string {
	switch command {
	case "start":
		return fmt.Sprintf("Aurora bridge for `%s` ↔ `%s`.\nUse /tokens, /add <token> or /transfers.",
			b.sess.NearAccountID, b.sess.AuroraHex())
	case "tokens":
		return b.tokensText(ctx)
	case "add":
		return b.addText(ctx, strings.TrimSpace(args))
	case "transfers":
		return b.transfersText(ctx)
	default:
		return "Unknown command. Use /start to get started."
	}
}

func (b *Bot) tokensText(ctx context.Context) string {
	tokens, err := b.tokens.RefreshAll(ctx, b.sess)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("*Balances*\n")
	for _, k := range keys {
		t := tokens[k]
		fmt.Fprintf(&sb, "%s: NEAR %s / Aurora %s\n", t.Nep141.Name,
			formatBalance(t.Nep141.Balance, t.Decimals), formatBalance(t.Balance, t.Decimals))
	}
	return sb.String()
}

func formatBalance(raw *string, decimals int) string {
	if raw == nil {
		return "?"
	}
	return registry.FormatAmount(*raw, decimals)
}

func (b *Bot) addText(ctx context.Context, addr string) string {
	err := b.tokens.AddCustomToken(ctx, addr)
	switch {
	case err == nil:
		return fmt.Sprintf("Added `%s`.", addr)
	case errors.Is(err, registry.ErrInvalidToken):
		return "Usage: /add <nep141 account>"
	case errors.Is(err, registry.ErrFeaturedToken):
		return fmt.Sprintf("`%s` is already listed.", addr)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func (b *Bot) transfersText(ctx context.Context) string {
	list, err := b.history.Recent(ctx, 10, 0)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(list) == 0 {
		return "No transfers yet."
	}

	var sb strings.Builder
	sb.WriteString("*Recent transfers*\n")
	for _, t := range list {
		fmt.Fprintf(&sb, "#%d %s %s %s: %s\n", t.ID, direction(t.Type),
			registry.FormatAmount(t.Amount, t.Decimals), t.SourceTokenName, t.Status)
	}
	return sb.String()
}

func direction(kind string) string {
	switch kind {
	case transfers.TypeSendToAurora:
		return "→ Aurora"
	case transfers.TypeSendToNear:
		return "→ NEAR"
	default:
		return kind
	}
}

var statusLabels = map[string]string{
	transfers.StatusFailed: "Failed",
	transfers.StatusStuck:  "Stuck",
}

// NotifyTransfer tells the admin about a transfer status change.
func (b *Bot) NotifyTransfer(t transfers.Transfer) {
	var text string
	switch t.Status {
	case transfers.StatusComplete:
		text = fmt.Sprintf("*Transfer #%d Complete*\n%s %s %s", t.ID, direction(t.Type),
			registry.FormatAmount(t.Amount, t.Decimals), t.SourceTokenName)
	case transfers.StatusFailed, transfers.StatusStuck:
		text = fmt.Sprintf("*Transfer #%d %s*\n%s %s %s", t.ID, statusLabels[t.Status], direction(t.Type),
			registry.FormatAmount(t.Amount, t.Decimals), t.SourceTokenName)
		if len(t.Errors) > 0 {
			text += "\n" + t.Errors[len(t.Errors)-1]
		}
	default:
		return
	}
	if t.Hash != "" {
		text += fmt.Sprintf("\nTx: `%s`", t.Hash)
	}

	msg := tgbotapi.NewMessage(b.adminID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		log.Printf("Bot: error notifying transfer %d: %v", t.ID, err)
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	reply.ParseMode = "Markdown"
	if _, err := b.sender.Send(reply); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
