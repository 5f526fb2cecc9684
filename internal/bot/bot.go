// Package bot is the Telegram entry point: it registers users and opens the wishlist Web App.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/sirupsen/logrus"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/models"
)

type Bot struct {
	instance  *telego.Bot
	users     *identity.Service
	webAppURL string
	loc       *time.Location
	log       logrus.FieldLogger
}

func NewBot(token, webAppURL string, users *identity.Service, loc *time.Location, log logrus.FieldLogger) (*Bot, error) {
	log = log.WithField("component", "bot")
	tgBot, err := telego.NewBot(token, telego.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Bot{
		instance:  tgBot,
		users:     users,
		webAppURL: webAppURL,
		loc:       loc,
		log:       log,
	}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.instance, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}
	defer func() { _ = handler.Stop() }()

	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleProfile, th.CommandEqual("profile"))

	b.log.Info("Telegram bot started")
	return handler.Start()
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	from := message.From
	if from == nil {
		return nil
	}

	param := commandArg(message.Text)
	user, created, err := b.users.GetOrRegister(ctx.Context(), identity.Registration{
		TelegramID: from.ID,
		Profile: identity.Profile{
			FirstName: &from.FirstName,
			LastName:  &from.LastName,
			Username:  &from.Username,
		},
		StartParam: param,
	})
	if err != nil {
		b.log.WithError(err).WithField("telegram_id", from.ID).Error("Failed to register user")
		b.reply(ctx, message.Chat.ID, "❌ Не удалось открыть профиль. Попробуйте позже.")
		return nil
	}

	var inviter *models.User
	if created && param != "" && user.InvitedByID != nil {
		found, err := b.users.GetByID(ctx.Context(), *user.InvitedByID)
		if err != nil {
			b.log.WithError(err).WithField("user_id", *user.InvitedByID).Warn("Failed to load inviter")
		} else {
			inviter = &found
		}
	}

	msg := tu.Message(tu.ID(message.Chat.ID), startText(user, inviter))
	if b.webAppURL != "" {
		msg = msg.WithReplyMarkup(tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("🎁 Открыть вишлист").WithWebApp(&telego.WebAppInfo{URL: b.webAppURL}),
			),
		))
	}
	if _, err := ctx.Bot().SendMessage(ctx.Context(), msg); err != nil {
		b.log.WithError(err).WithField("telegram_id", from.ID).Warn("Failed to send start message")
	}
	return nil
}

func (b *Bot) handleProfile(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}

	user, err := b.users.GetByTelegramID(ctx.Context(), message.From.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		b.reply(ctx, message.Chat.ID, "👤 Профиль не найден. Отправьте /start.")
		return nil
	case err != nil:
		b.log.WithError(err).WithField("telegram_id", message.From.ID).Error("Failed to load profile")
		b.reply(ctx, message.Chat.ID, "❌ Не удалось загрузить профиль.")
		return nil
	}

	b.reply(ctx, message.Chat.ID, profileText(user, b.loc))
	return nil
}

func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text)); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message")
	}
}

// commandArg returns the first argument of a command message, if any.
func commandArg(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func displayName(u models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	default:
		return fmt.Sprintf("пользователь %d", u.TelegramID)
	}
}

func startText(user models.User, inviter *models.User) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Привет, %s! 👋\n\nЗдесь можно собрать вишлист и поделиться им с друзьями.", displayName(user))
	if inviter != nil {
		fmt.Fprintf(&sb, "\n\n🤝 Вас пригласил(а) %s.", displayName(*inviter))
	}
	return sb.String()
}

func profileText(user models.User, loc *time.Location) string {
	return fmt.Sprintf("👤 Профиль\n\n"+
		"🔹 ID: %d\n"+
		"🔹 Зарегистрирован: %s\n"+
		"🎁 Подарено: %d\n"+
		"🎉 Получено: %d",
		user.TelegramID,
		models.FormatDisplayTime(user.RegistrationTime, loc),
		user.GiftsGiven,
		user.GiftsReceived,
	)
}
