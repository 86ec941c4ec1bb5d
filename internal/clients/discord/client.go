// Package discord implements the mirror client over the Discord REST API.
// Each track maps to one public thread under a configured text channel.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/aristath/requestmirror/internal/modules/requests"
	"github.com/rs/zerolog"
)

// Config holds the Discord client settings
type Config struct {
	BaseURL   string
	Token     string
	ChannelID string // Parent text channel for the track threads
	GuildID   string // Needed to look up active threads; empty skips that lookup
	BotUserID string // Empty means resolve via /users/@me
}

// Client for the Discord REST API
type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger

	mu        sync.Mutex
	threads   map[string]string // track slug -> thread id
	botUserID string
}

// NewClient creates a new Discord API client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:       cfg,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "discord").Logger(),
		threads:   make(map[string]string),
		botUserID: cfg.BotUserID,
	}
}

// GetOrCreateThread returns the thread for a track. Threads are matched by name
// among the channel's active and archived public threads, and created when missing.
func (c *Client) GetOrCreateThread(ctx context.Context, trackSlug string) (string, error) {
	c.mu.Lock()
	id, ok := c.threads[trackSlug]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	threads, err := c.listThreads(ctx)
	if err != nil {
		return "", domain.Transient("discord.list_threads", err)
	}

	title := requests.Title(trackSlug)
	for _, th := range threads {
		if threadMatches(th.Name, trackSlug, title) {
			c.remember(trackSlug, th.ID)
			return th.ID, nil
		}
	}

	var created channel
	body := createThread{Name: title, Type: channelTypePublicThread, AutoArchiveDuration: autoArchiveMinutes}
	if err := c.do(ctx, http.MethodPost, "/channels/"+c.cfg.ChannelID+"/threads", body, &created); err != nil {
		return "", c.wrap("discord.create_thread", "", err)
	}
	if created.ID == "" {
		return "", domain.Inconsistent("discord.create_thread", "thread for %s created without an id", trackSlug)
	}

	c.log.Info().
		Str("track", trackSlug).
		Str("thread_id", created.ID).
		Msg("Created track thread")

	c.remember(trackSlug, created.ID)
	return created.ID, nil
}

// SendMessage posts content to a thread with embeds suppressed and mentions disabled.
func (c *Client) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	if err := c.unarchive(ctx, threadID); err != nil {
		return "", err
	}

	var msg message
	body := createMessage{
		Content:         content,
		Flags:           flagSuppressEmbeds,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+threadID+"/messages", body, &msg); err != nil {
		return "", c.wrap("discord.send_message", threadID, err)
	}
	if msg.ID == "" {
		return "", domain.Inconsistent("discord.send_message", "message sent to %s without an id", threadID)
	}
	return msg.ID, nil
}

// DeleteMessage removes a message. A message that no longer exists counts as deleted.
func (c *Client) DeleteMessage(ctx context.Context, threadID, messageID string) error {
	if err := c.unarchive(ctx, threadID); err != nil {
		return err
	}

	err := c.do(ctx, http.MethodDelete, "/channels/"+threadID+"/messages/"+messageID, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound &&
		(apiErr.Code == codeUnknownMessage || apiErr.Code == 0) {
		c.log.Debug().
			Str("thread_id", threadID).
			Str("message_id", messageID).
			Msg("Message already gone")
		return nil
	}
	if err != nil {
		return c.wrap("discord.delete_message", threadID, err)
	}
	return nil
}

// ListMessages returns the bot's messages in a thread that carry a request id,
// newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]domain.MirrorMessage, error) {
	botID, err := c.resolveBotUser(ctx)
	if err != nil {
		return nil, domain.Transient("discord.resolve_bot_user", err)
	}

	var out []domain.MirrorMessage
	before := ""
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize))
		if before != "" {
			params.Set("before", before)
		}

		var page []message
		if err := c.do(ctx, http.MethodGet, "/channels/"+threadID+"/messages?"+params.Encode(), nil, &page); err != nil {
			return nil, c.wrap("discord.list_messages", threadID, err)
		}

		for _, m := range page {
			if m.Author.ID != botID || m.Type == messageTypeThreadStart {
				continue
			}
			if id, ok := requests.ParseRequestID(m.Content); ok {
				out = append(out, domain.MirrorMessage{MessageID: m.ID, RequestID: id})
			}
		}

		if len(page) < pageSize {
			break
		}
		before = page[len(page)-1].ID
	}
	return out, nil
}

// unarchive reopens an archived thread so it accepts writes.
func (c *Client) unarchive(ctx context.Context, threadID string) error {
	var th channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+threadID, nil, &th); err != nil {
		return c.wrap("discord.get_thread", threadID, err)
	}
	if !th.archived() {
		return nil
	}

	body := map[string]bool{"archived": false}
	if err := c.do(ctx, http.MethodPatch, "/channels/"+threadID, body, nil); err != nil {
		return c.wrap("discord.unarchive", threadID, err)
	}
	c.log.Info().Str("thread_id", threadID).Msg("Unarchived thread")
	return nil
}

// listThreads returns the active and archived public threads under the channel.
func (c *Client) listThreads(ctx context.Context) ([]channel, error) {
	var out []channel

	if c.cfg.GuildID != "" {
		var active threadList
		if err := c.do(ctx, http.MethodGet, "/guilds/"+c.cfg.GuildID+"/threads/active", nil, &active); err != nil {
			return nil, err
		}
		for _, th := range active.Threads {
			if th.ParentID == c.cfg.ChannelID {
				out = append(out, th)
			}
		}
	}

	before := ""
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize))
		if before != "" {
			params.Set("before", before)
		}

		var archived threadList
		if err := c.do(ctx, http.MethodGet, "/channels/"+c.cfg.ChannelID+"/threads/archived/public?"+params.Encode(), nil, &archived); err != nil {
			return nil, err
		}
		out = append(out, archived.Threads...)

		if !archived.HasMore || len(archived.Threads) == 0 {
			break
		}
		// archived threads paginate by archive timestamp; the id cursor is not accepted
		last := archived.Threads[len(archived.Threads)-1]
		if last.ThreadMetadata == nil {
			break
		}
		before = last.ThreadMetadata.ArchiveTimestamp
		if before == "" {
			break
		}
	}
	return out, nil
}

func (c *Client) resolveBotUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.botUserID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var me user
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &me); err != nil {
		return "", err
	}
	if me.ID == "" {
		return "", fmt.Errorf("users/@me returned no id")
	}

	c.mu.Lock()
	c.botUserID = me.ID
	c.mu.Unlock()
	return me.ID, nil
}

func (c *Client) remember(slug, threadID string) {
	c.mu.Lock()
	c.threads[slug] = threadID
	c.mu.Unlock()
}

// forgetThread drops a cached thread id so the next lookup resolves it again.
func (c *Client) forgetThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slug, id := range c.threads {
		if id == threadID {
			delete(c.threads, slug)
		}
	}
}

// wrap classifies an API error. A vanished thread is a structural mismatch and
// is forgotten so the next lookup resolves it again; everything else is retried.
func (c *Client) wrap(op, threadID string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeUnknownChannel {
		if threadID != "" {
			c.forgetThread(threadID)
		}
		return domain.Inconsistent(op, "%v", err)
	}
	return domain.Transient(op, err)
}

// do sends an authenticated request. in is JSON encoded when non-nil and the
// response body is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.Token)
	req.Header.Set("User-Agent", "requestmirror (https://github.com/aristath/requestmirror, 1.0)")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.RetryAfter == 0 {
		if v, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil {
			apiErr.RetryAfter = v
		}
	}
	return apiErr
}

// threadMatches compares a thread name with a track, ignoring case.
func threadMatches(name, slug, title string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, slug) || strings.EqualFold(name, title)
}
