package telegram

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Bot struct {
	api *tgbotapi.BotAPI
	h   *Handlers
}

func NewBot(token, webhookURL string, d Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	logrus.Infof("telegram: webhook set to %s", webhookURL)

	return &Bot{api: api, h: NewHandlers(api, d)}, nil
}

// WebhookHandler serves /telegram/webhook.
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	serveUpdate(b.h, w, r)
}

func serveUpdate(h *Handlers, w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	switch {
	case update.Message != nil:
		logrus.WithFields(logrus.Fields{
			"chat_id": update.Message.Chat.ID,
			"text":    update.Message.Text,
		}).Debug("webhook: message")
		go h.HandleMessage(update.Message)
	case update.CallbackQuery != nil:
		logrus.WithField("data", update.CallbackQuery.Data).Debug("webhook: callback")
		go h.HandleCallback(update.CallbackQuery)
	default:
		logrus.Debug("webhook: ignored update")
	}
	w.WriteHeader(http.StatusOK)
}
