package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloudrank/internal/notifier"
	"cloudrank/internal/tokenizer"
	"cloudrank/internal/transport"
	"cloudrank/internal/wordcloud"
	logx "cloudrank/pkg/logx"
)

// textLimit caps how many messages feed one cloud. Beyond this the
// frequencies barely move and the query just gets slower.
const textLimit = 10000

// renderAndSend runs the whole pipeline for one chat: history window,
// tokenize, render, deliver. Pipeline failures produce a plain-text notice
// in the chat instead of silence.
func (s *Service) renderAndSend(ctx context.Context, chatID int64, since time.Time, title string, withRanking bool) error {
	cfg := s.config()
	session := sessionID(chatID)
	now := s.now()

	texts, err := s.deps.History.Texts(ctx, session, since, textLimit)
	if err != nil {
		s.sendText(ctx, chatID, "Word cloud failed: history unavailable.")
		return fmt.Errorf("history query for %s: %w", session, err)
	}

	freqs := tokenizer.Frequencies(texts, cfg.MinWordLength, cfg.Stopwords)
	path, err := s.deps.Engine.Render(freqs, session, now, title)
	switch {
	case errors.Is(err, wordcloud.ErrNoWords):
		s.sendText(ctx, chatID, "Nothing to summarize yet, the chat has been quiet.")
		return nil
	case errors.Is(err, wordcloud.ErrContended):
		s.sendText(ctx, chatID, "A word cloud for this chat is already being generated.")
		return nil
	case err != nil:
		s.sendText(ctx, chatID, "Word cloud failed, see the bot log.")
		return fmt.Errorf("render for %s: %w", session, err)
	}

	err = s.deps.Notifier.Enqueue(ctx, notifier.Delivery{
		Target:    transport.ChatTarget{ChatID: chatID},
		Text:      title,
		PhotoPath: path,
	})
	if err != nil {
		return fmt.Errorf("deliver cloud for %s: %w", session, err)
	}
	s.log.Info("wordcloud delivered",
		logx.Int64("chat_id", chatID),
		logx.Int("messages", len(texts)),
		logx.Int("words", len(freqs)))

	if withRanking {
		return s.sendRanking(ctx, chatID, since)
	}
	return nil
}

func (s *Service) sendRanking(ctx context.Context, chatID int64, since time.Time) error {
	cfg := s.config()
	session := sessionID(chatID)

	top, err := s.deps.History.TopSenders(ctx, session, since, cfg.RankingCount)
	if err != nil {
		return fmt.Errorf("ranking query for %s: %w", session, err)
	}
	if len(top) == 0 {
		s.sendText(ctx, chatID, "No activity to rank yet.")
		return nil
	}
	s.sendText(ctx, chatID, FormatRanking(top, cfg.RankingMedals))
	return nil
}
