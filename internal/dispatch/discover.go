package dispatch

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdatesAPI is the subset of *tgbotapi.BotAPI used for channel discovery.
type UpdatesAPI interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Channel is a chat the bot has seen in its pending updates.
type Channel struct {
	ID       int64
	Type     string
	Title    string
	Username string
}

// DiscoverChannels clears the webhook so getUpdates works, then lists the
// channels and groups that appear in pending updates, in first-seen order.
func DiscoverChannels(api UpdatesAPI) ([]Channel, error) {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return nil, fmt.Errorf("failed to delete webhook: %w", err)
	}

	updates, err := api.GetUpdates(tgbotapi.NewUpdate(0))
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	var channels []Channel
	seen := make(map[int64]bool)
	for _, u := range updates {
		for _, chat := range updateChats(u) {
			if chat == nil || seen[chat.ID] {
				continue
			}
			if !chat.IsChannel() && !chat.IsSuperGroup() && !chat.IsGroup() {
				continue
			}
			seen[chat.ID] = true
			channels = append(channels, Channel{
				ID:       chat.ID,
				Type:     chat.Type,
				Title:    chat.Title,
				Username: chat.UserName,
			})
		}
	}
	return channels, nil
}

func updateChats(u tgbotapi.Update) []*tgbotapi.Chat {
	var chats []*tgbotapi.Chat
	if u.ChannelPost != nil {
		chats = append(chats, u.ChannelPost.Chat)
	}
	if u.Message != nil {
		chats = append(chats, u.Message.Chat)
	}
	if u.MyChatMember != nil {
		chats = append(chats, &u.MyChatMember.Chat)
	}
	return chats
}
