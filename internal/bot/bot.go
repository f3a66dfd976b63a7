// Package bot adapts the Telegram transport to the dialogue core. The
// core only ever sees plain text in and out; this layer also serializes
// turns per chat so a session never has two in-flight steps.
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"quadra/internal/export"
	"quadra/internal/metrics"
	"quadra/internal/schedule"
	"quadra/internal/store"
)

// Dialogue handles one inbound text per visitor.
type Dialogue interface {
	HandleMessage(ctx context.Context, phone, text string) (string, error)
}

// Bot runs the Telegram long-polling loop.
type Bot struct {
	api      *tgbotapi.BotAPI
	dialogue Dialogue
	store    store.Store
	catalog  *schedule.Calculator
	managers map[int64]bool
	exports  string
	logger   *zerolog.Logger

	mu    sync.Mutex
	chats map[int64]*sync.Mutex
}

// New connects to Telegram and builds the adapter.
func New(token string, debug bool, dialogue Dialogue, st store.Store, catalog *schedule.Calculator,
	managers []int64, exportDir string, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	api.Debug = debug

	managerSet := make(map[int64]bool, len(managers))
	for _, id := range managers {
		managerSet[id] = true
	}

	return &Bot{
		api:      api,
		dialogue: dialogue,
		store:    st,
		catalog:  catalog,
		managers: managerSet,
		exports:  exportDir,
		logger:   logger,
		chats:    make(map[int64]*sync.Mutex),
	}, nil
}

// SendText implements the notification sender.
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// chatLock returns the per-chat mutex that keeps a session's steps
// strictly ordered.
func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.chats[chatID]
	if !ok {
		m = &sync.Mutex{}
		b.chats[chatID] = m
	}
	return m
}

// Start polls updates until ctx is canceled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("bot", b.api.Self.UserName).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go b.handleUpdate(ctx, update.Message)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	lock := b.chatLock(msg.Chat.ID)
	lock.Lock()
	defer lock.Unlock()

	reply := b.route(ctx, msg)
	if reply == "" {
		return
	}
	if err := b.SendText(msg.Chat.ID, reply); err != nil {
		b.logger.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("send reply failed")
	}
}

func (b *Bot) route(ctx context.Context, msg *tgbotapi.Message) string {
	text := strings.TrimSpace(msg.Text)

	if b.managers[msg.Chat.ID] {
		switch {
		case strings.HasPrefix(text, "/cancelar"):
			return b.handleCancel(ctx, text)
		case text == "/exportar":
			return b.handleExport(ctx, msg.Chat.ID)
		}
	}

	phone := strconv.FormatInt(msg.Chat.ID, 10)
	reply, err := b.dialogue.HandleMessage(ctx, phone, text)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("dialogue turn failed")
	}
	return reply
}

func (b *Bot) handleCancel(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "Uso: /cancelar <id da reserva>"
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "Uso: /cancelar <id da reserva>"
	}

	if err := b.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Reserva %d não encontrada.", id)
		}
		b.logger.Error().Err(err).Int64("booking", id).Msg("cancel failed")
		return "Não foi possível cancelar agora, tente novamente."
	}
	metrics.IncBookingCanceled()
	return fmt.Sprintf("Reserva %d cancelada.", id)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) string {
	var sheets []export.Sheet
	for _, u := range b.catalog.Units() {
		bookings, err := b.store.ListByUnit(ctx, u.ID)
		if err != nil {
			b.logger.Error().Err(err).Str("unit", string(u.ID)).Msg("export listing failed")
			return "Não foi possível gerar o relatório agora."
		}
		sheets = append(sheets, export.Sheet{Name: u.Name, Bookings: bookings})
	}

	if err := os.MkdirAll(b.exports, 0o755); err != nil {
		b.logger.Error().Err(err).Msg("export dir failed")
		return "Não foi possível gerar o relatório agora."
	}
	path := filepath.Join(b.exports, fmt.Sprintf("reservas_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := export.WriteWorkbook(path, sheets); err != nil {
		b.logger.Error().Err(err).Msg("export write failed")
		return "Não foi possível gerar o relatório agora."
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("export upload failed")
		return fmt.Sprintf("Relatório gerado em %s, mas o envio falhou.", path)
	}
	return ""
}
