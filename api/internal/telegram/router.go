package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"pkm2-predict/api/internal/service"
	"pkm2-predict/api/internal/store"
	"pkm2-predict/api/internal/util"
)

const (
	// maxMessage stays below Telegram's 4096 character limit.
	maxMessage   = 3900
	historyLimit = 5
)

// Sender is the part of *tgbotapi.BotAPI the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Predicter runs one prediction for a compound.
type Predicter interface {
	Predict(ctx context.Context, compound string) (service.Outcome, error)
}

// History reads past predictions; nil when no database is configured.
type History interface {
	Recent(ctx context.Context, compound string, limit int) ([]store.PredictionRow, error)
}

type Router struct {
	Bot      Sender
	Svc      Predicter
	History  History
	Required []string
	Log      *zap.Logger

	// Timeout bounds a single prediction triggered from chat.
	Timeout time.Duration
}

func (r *Router) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd)
		return
	}
	text := strings.TrimSpace(upd.Message.Text)
	if text == "" {
		r.send(upd.Message.Chat.ID, "Send a SMILES string, for example CCO.")
		return
	}
	r.predict(ctx, upd.Message.Chat.ID, text)
}

func (r *Router) HandleCommand(ctx context.Context, upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, "Send a SMILES string and I will classify it against PKM2.\n"+
			"Commands: /descriptors, /history <SMILES>, /health")
	case "descriptors":
		r.send(cid, fmt.Sprintf("%d required descriptors:\n%s", len(r.Required), strings.Join(r.Required, ", ")))
	case "history":
		r.history(ctx, cid, strings.TrimSpace(upd.Message.CommandArguments()))
	case "health":
		r.send(cid, "OK")
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) predict(ctx context.Context, cid int64, smiles string) {
	_, _ = r.Bot.Send(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	out, err := r.Svc.Predict(ctx, smiles)
	if err != nil {
		r.log().Info("chat prediction failed", zap.Int64("chat", cid), zap.Error(err))
		r.SendError(cid, err)
		return
	}
	r.SendResult(cid, fmt.Sprintf("Prediction: %v", out.Prediction))
}

func (r *Router) history(ctx context.Context, cid int64, smiles string) {
	if r.History == nil {
		r.send(cid, "History is not available.")
		return
	}
	if smiles == "" {
		r.send(cid, "Usage: /history <SMILES>")
		return
	}
	rows, err := r.History.Recent(ctx, smiles, historyLimit)
	if err != nil {
		r.log().Warn("history lookup failed", zap.Error(err))
		r.SendError(cid, err)
		return
	}
	if len(rows) == 0 {
		r.send(cid, "No predictions recorded for "+smiles)
		return
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.CreatedAt.UTC().Format(time.DateTime))
		if row.ErrCode != "" {
			fmt.Fprintf(&b, "  error %s: %s\n", row.ErrCode, util.FirstLine(row.ErrText))
		} else {
			fmt.Fprintf(&b, "  %v\n", row.Prediction)
		}
	}
	r.SendResult(cid, b.String())
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) SendResult(chatID int64, text string) {
	r.send(chatID, util.Truncate(text, maxMessage))
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, util.Truncate("Error: "+err.Error(), maxMessage))
}
