package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnnouncePubSub publishes raffle announcements to a redis channel. The
// chat front end subscribes and relays the text to the audience; a lost
// announcement never affects raffle state.
type AnnouncePubSub struct {
	rdb     *redis.Client
	channel string
}

func NewAnnouncePubSub(rdb *redis.Client, channel string) *AnnouncePubSub {
	if channel == "" {
		channel = ChannelAnnouncements()
	}

	return &AnnouncePubSub{
		rdb:     rdb,
		channel: channel,
	}
}

type announcementMsg struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	TsUnix int64  `json:"ts_unix"`
}

// Announce publishes one announcement. Kind tags the event for the front
// end (registered, drawn, winner, rejected, deleted, archived).
func (p *AnnouncePubSub) Announce(ctx context.Context, kind, text string) error {
	msg := announcementMsg{
		Kind:   kind,
		Text:   text,
		TsUnix: time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe consumes announcements until ctx is done.
func (p *AnnouncePubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, kind, text string)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg announcementMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.Text != "" {
				handler(ctx, msg.Kind, msg.Text)
			}
		}
	}
}
