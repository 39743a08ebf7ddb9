// Copyright 2026 The Gamevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gamevisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// EventKind names a server event that is worth telling people about.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventStopping     EventKind = "stopping"
	EventStopped      EventKind = "stopped"
	EventPlayerJoined EventKind = "player_joined"
	EventPlayerLeft   EventKind = "player_left"
	EventUpdating     EventKind = "updating"
	EventUpdated      EventKind = "updated"
	EventCustom       EventKind = "custom"
)

// ParseEventKind accepts the EventKind names, and "joined"/"left" as
// shorthands.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EventStarted, EventStopping, EventStopped, EventPlayerJoined,
		EventPlayerLeft, EventUpdating, EventUpdated, EventCustom:
		return k, nil
	case "joined":
		return EventPlayerJoined, nil
	case "left":
		return EventPlayerLeft, nil
	}
	return "", fmt.Errorf("unknown event %q", s)
}

// Event is a server event.  Player is set for player events, and Message
// for custom ones.
type Event struct {
	Kind    EventKind
	Player  string
	Message string
}

// Title is the notification title of the event for the named server.
func (ev Event) Title(server string) string {
	switch ev.Kind {
	case EventStarted:
		return server + ": Server Started"
	case EventStopping:
		return server + ": Server Stopping"
	case EventStopped:
		return server + ": Server Stopped"
	case EventPlayerJoined:
		return server + ": Player Joined"
	case EventPlayerLeft:
		return server + ": Player Left"
	case EventUpdating:
		return server + ": Server Updating"
	case EventUpdated:
		return server + ": Server Updated"
	}
	return server
}

func (ev Event) Description() string {
	if ev.Message != "" {
		return ev.Message
	}
	switch ev.Kind {
	case EventStarted:
		return "The server has started successfully."
	case EventStopping:
		return "The server is shutting down gracefully."
	case EventStopped:
		return "The server has been stopped."
	case EventPlayerJoined:
		return fmt.Sprintf("Player %s has joined the adventure!", ev.Player)
	case EventPlayerLeft:
		return fmt.Sprintf("Player %s has left the adventure.", ev.Player)
	case EventUpdating:
		return "A new build is available, the server is updating."
	case EventUpdated:
		return "The server has been updated to the latest build."
	}
	return string(ev.Kind)
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Event) error { return nil }

const (
	DefaultServerName = "My Server"

	colorAlert   = 0xFA113D
	colorInfo    = 0x4BB543
	colorDefault = 0x007F66
)

// IsDiscordWebhook reports whether u looks like a Discord webhook URL.
func IsDiscordWebhook(u string) bool {
	return strings.HasPrefix(u, "https://discord.com/api/webhooks") ||
		strings.HasPrefix(u, "https://discordapp.com/api/webhooks")
}

// DiscordColor is the embed color for a notification type.
func DiscordColor(notificationType string) int {
	switch strings.ToLower(notificationType) {
	case "alert":
		return colorAlert
	case "info":
		return colorInfo
	}
	return colorDefault
}

type genericPayload struct {
	NotificationType string      `json:"notification_type"`
	Message          string      `json:"message"`
	Data             interface{} `json:"data"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

// WebhookNotifier posts events to a webhook.  Discord webhooks get an
// embed, anything else a generic JSON document.
type WebhookNotifier struct {
	url     string
	server  string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewWebhookNotifier validates webhookURL and returns a notifier posting
// to it.  Bursts of five notifications go out at once, after that one per
// second.
func NewWebhookNotifier(webhookURL, server string, logger zerolog.Logger) (*WebhookNotifier, error) {
	u, e := url.Parse(webhookURL)
	if e != nil || webhookURL == "" || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newError(KindConfig, "webhook",
			fmt.Errorf("%w: %q", ErrInvalidWebhookURL, webhookURL))
	}
	if server == "" {
		server = DefaultServerName
	}
	return &WebhookNotifier{
		url:     webhookURL,
		server:  server,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:  logger,
	}, nil
}

// SetRate changes the notification rate limit.
func (w *WebhookNotifier) SetRate(every time.Duration, burst int) {
	w.limiter = rate.NewLimiter(rate.Every(every), burst)
}

func (w *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	var data interface{}
	if ev.Player != "" {
		data = map[string]string{"player": ev.Player}
	}
	return w.Send(ctx, ev.Title(w.server), ev.Description(), data)
}

// Send posts one notification.  Data is dropped for Discord.
func (w *WebhookNotifier) Send(ctx context.Context, notificationType, message string, data interface{}) error {
	var body interface{}
	if IsDiscordWebhook(w.url) {
		body = discordPayload{
			Content: "Notification: " + notificationType,
			Embeds: []discordEmbed{{
				Title:       notificationType,
				Description: message,
				Color:       DiscordColor(notificationType),
			}},
		}
	} else {
		body = genericPayload{
			NotificationType: notificationType,
			Message:          message,
			Data:             data,
		}
	}
	b, e := json.Marshal(body)
	if e != nil {
		return e
	}

	if e := w.limiter.Wait(ctx); e != nil {
		return e
	}
	req, e := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "application/json")
	res, e := w.client.Do(req)
	if e != nil {
		w.logger.Error().Err(e).Str("type", notificationType).Msg("Failed to send notification")
		return e
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		e = fmt.Errorf("webhook returned %s", res.Status)
		w.logger.Error().Err(e).Str("type", notificationType).Msg("Failed to send notification")
		return e
	}
	w.logger.Debug().Str("type", notificationType).Msg("Notification sent")
	return nil
}
