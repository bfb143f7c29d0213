package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"schoolbox-be/config"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// MessageRef identifies one provider message in a listing.
type MessageRef struct {
	ID       string
	ThreadID string
}

// OutboundEmail is what the mailer sends.
type OutboundEmail struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	ThreadID string
	// InReplyTo carries the RFC 5322 Message-ID of the message being
	// answered so the reply threads correctly.
	InReplyTo string
}

// GmailService talks to the school's shared inbox. It implements both the
// inbox-reading and outbound-sending sides of the pipeline.
type GmailService struct {
	cfg    *config.Config
	logger *zap.Logger

	mu  sync.Mutex
	srv *gmail.Service
	// labelIDs caches get-or-create results by label name.
	labelIDs map[string]string
}

func NewGmailService(cfg *config.Config, logger *zap.Logger) *GmailService {
	return &GmailService{
		cfg:      cfg,
		logger:   logger,
		labelIDs: make(map[string]string),
	}
}

func (s *GmailService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailModifyScope,
			gmail.GmailSendScope,
			gmail.GmailLabelsScope,
		},
		Endpoint: google.Endpoint,
	}
}

// client returns the authenticated Gmail service, building it once. The
// token source refreshes access tokens from the configured refresh token.
func (s *GmailService) client(ctx context.Context) (*gmail.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return s.srv, nil
	}

	if s.cfg.GmailRefreshToken == "" {
		return nil, providerErr("no gmail refresh token configured")
	}

	token := &oauth2.Token{
		RefreshToken: s.cfg.GmailRefreshToken,
		TokenType:    "Bearer",
	}
	tokenSource := s.oauthConfig().TokenSource(context.Background(), token)

	srv, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, providerErr("create gmail service: %w", err)
	}

	s.srv = srv
	return srv, nil
}

// ListRecent returns unread messages received inside the window. Messages
// the pipeline already marked read are not returned again by the provider.
func (s *GmailService) ListRecent(ctx context.Context, window time.Duration, maxResults int64) ([]MessageRef, error) {
	srv, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("is:unread in:inbox newer_than:%dd", daysFor(window))
	resp, err := srv.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, providerErr("list messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// daysFor converts a window to whole days for Gmail's newer_than operator,
// rounding up so a 12h window still scans today.
func daysFor(window time.Duration) int {
	days := int(window / (24 * time.Hour))
	if window%(24*time.Hour) != 0 || days == 0 {
		days++
	}
	return days
}

// Fetch returns the full MIME tree for one message.
func (s *GmailService) Fetch(ctx context.Context, id string) (*gmail.Message, error) {
	srv, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, providerErr("get message %s: %w", id, err)
	}
	return msg, nil
}

// ApplyLabel attaches the named label, creating it first if the provider
// does not know it yet. Get-or-create is cached, so repeated passes reuse
// the same label id and never duplicate labels.
func (s *GmailService) ApplyLabel(ctx context.Context, messageID, labelName string) error {
	labelID, err := s.getOrCreateLabel(ctx, labelName)
	if err != nil {
		return err
	}
	return s.modify(ctx, messageID, []string{labelID}, nil)
}

func (s *GmailService) getOrCreateLabel(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	if id, ok := s.labelIDs[name]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	srv, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	resp, err := srv.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", providerErr("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			s.cacheLabel(name, l.Id)
			return l.Id, nil
		}
	}

	created, err := srv.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", providerErr("create label %q: %w", name, err)
	}

	s.cacheLabel(name, created.Id)
	return created.Id, nil
}

func (s *GmailService) cacheLabel(name, id string) {
	s.mu.Lock()
	s.labelIDs[name] = id
	s.mu.Unlock()
}

// MarkImportant flags the message at the provider level.
func (s *GmailService) MarkImportant(ctx context.Context, messageID string) error {
	return s.modify(ctx, messageID, []string{"IMPORTANT"}, nil)
}

// MarkProcessed removes UNREAD so ListRecent stops returning the message.
func (s *GmailService) MarkProcessed(ctx context.Context, messageID string) error {
	return s.modify(ctx, messageID, nil, []string{"UNREAD"})
}

func (s *GmailService) modify(ctx context.Context, messageID string, add, remove []string) error {
	srv, err := s.client(ctx)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	if _, err := srv.Users.Messages.Modify("me", messageID, req).Context(ctx).Do(); err != nil {
		return providerErr("modify message %s: %w", messageID, err)
	}
	return nil
}

// DownloadAttachment fetches one attachment body.
func (s *GmailService) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	srv, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	attach, err := srv.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, providerErr("get attachment %s: %w", attachmentID, err)
	}

	data, err := base64.URLEncoding.DecodeString(attach.Data)
	if err != nil {
		return nil, providerErr("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

// Send builds an RFC 2822 message and sends it through the provider.
// Replies carry In-Reply-To/References and the thread id so conversations
// stay grouped.
func (s *GmailService) Send(ctx context.Context, out *OutboundEmail) (string, error) {
	srv, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	var msg strings.Builder
	msg.WriteString("From: " + s.cfg.SchoolName + " <" + s.cfg.GmailAddress + ">\r\n")
	msg.WriteString("To: " + out.To + "\r\n")
	msg.WriteString("Subject: " + out.Subject + "\r\n")
	if out.InReplyTo != "" {
		msg.WriteString("In-Reply-To: " + out.InReplyTo + "\r\n")
		msg.WriteString("References: " + out.InReplyTo + "\r\n")
	}
	msg.WriteString("MIME-Version: 1.0\r\n")

	if out.HTML != "" {
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(base64.StdEncoding.EncodeToString([]byte(out.HTML)))
	} else {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		msg.WriteString(base64.StdEncoding.EncodeToString([]byte(out.Text)))
	}

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(msg.String())),
	}
	if out.ThreadID != "" {
		message.ThreadId = out.ThreadID
	}

	sent, err := srv.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return "", providerErr("send message to %s: %w", out.To, err)
	}

	s.logger.Info("outbound email sent",
		zap.String("to", out.To),
		zap.String("messageId", sent.Id))
	return sent.Id, nil
}
