// Package transport defines the chat-platform boundary. The bot consumes
// Updates and sends through the Adapter without knowing which platform is
// behind it.
package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID         int
	ChatID     int64
	SenderID   int64
	SenderName string
	Text       string
	IsGroup    bool
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	SendPhoto(ctx context.Context, to ChatTarget, path, caption string) error
}
