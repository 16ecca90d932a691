package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/core"
	"github.com/sebastian-ames3/inbox-janitor-sub002/internal/utils"
)

// categoryLabels maps Gmail system category labels to the engine's
// category names.
var categoryLabels = map[string]string{
	"CATEGORY_PROMOTIONS": "promotions",
	"CATEGORY_SOCIAL":     "social",
	"CATEGORY_UPDATES":    "updates",
	"CATEGORY_FORUMS":     "forums",
	"CATEGORY_PERSONAL":   "primary",
}

// Mailbox implements the core.Mailbox port over the Gmail API. The most
// destructive operation it exposes is Gmail's own recoverable trash.
type Mailbox struct {
	srv      *gmail.Service
	user     string
	contacts map[string]bool
	clock    core.Clock
	text     *utils.TextProcessor
	logger   *zap.Logger

	labelMu  sync.Mutex
	labelIDs map[string]string
}

// NewMailbox creates a Gmail mailbox from stored OAuth credentials.
// contacts is the user's known-contact address list; Gmail metadata alone
// does not carry contact membership.
func NewMailbox(ctx context.Context, credentialsFile, tokenFile, user string, contacts []string, clock core.Clock, text *utils.TextProcessor, logger *zap.Logger) (*Mailbox, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth token: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	contactSet := make(map[string]bool, len(contacts))
	for _, c := range contacts {
		contactSet[strings.ToLower(strings.TrimSpace(c))] = true
	}

	return &Mailbox{
		srv:      srv,
		user:     user,
		contacts: contactSet,
		clock:    clock,
		text:     text,
		logger:   logger,
		labelIDs: make(map[string]string),
	}, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// Search returns up to max message identifiers matching the Gmail query.
func (m *Mailbox) Search(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := m.srv.Users.Messages.List(m.user).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMetadata reads bounded metadata for one message. Only headers and the
// snippet are requested, never the body.
func (m *Mailbox) GetMetadata(ctx context.Context, id string) (core.EmailMetadata, error) {
	msg, err := m.srv.Users.Messages.Get(m.user, id).
		Format("metadata").
		MetadataHeaders("From", "Subject", "List-Unsubscribe").
		Context(ctx).Do()
	if err != nil {
		return core.EmailMetadata{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	meta := core.EmailMetadata{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  m.text.ProcessText(msg.Snippet, core.SnippetLimit),
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				meta.From = extractAddress(header.Value)
			case "Subject":
				meta.Subject = header.Value
			case "List-Unsubscribe":
				meta.HasUnsubscribe = true
			}
		}
	}

	for _, label := range msg.LabelIds {
		if label == "STARRED" {
			meta.IsStarred = true
		}
		if category, ok := categoryLabels[label]; ok {
			meta.Category = category
		}
	}

	meta.IsContact = m.contacts[strings.ToLower(meta.From)]

	if msg.InternalDate > 0 {
		received := time.UnixMilli(msg.InternalDate)
		meta.AgeDays = int(m.clock.Now().Sub(received).Hours() / 24)
	}

	return meta, nil
}

// ModifyLabels applies and removes labels by name, creating them on first
// use.
func (m *Mailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	addIDs, err := m.resolveLabels(ctx, add)
	if err != nil {
		return err
	}
	removeIDs, err := m.resolveLabels(ctx, remove)
	if err != nil {
		return err
	}

	_, err = m.srv.Users.Messages.Modify(m.user, id, &gmail.ModifyMessageRequest{
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", id, err)
	}
	return nil
}

// Archive removes the message from the inbox without deleting it.
func (m *Mailbox) Archive(ctx context.Context, id string) error {
	_, err := m.srv.Users.Messages.Modify(m.user, id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to archive message %s: %w", id, err)
	}
	return nil
}

// Trash moves the message to Gmail's trash, from which Gmail itself allows
// recovery for 30 days. There is no permanent-delete call in this adapter.
func (m *Mailbox) Trash(ctx context.Context, id string) error {
	_, err := m.srv.Users.Messages.Trash(m.user, id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to trash message %s: %w", id, err)
	}
	return nil
}

// extractAddress pulls the bare address out of a "Name <addr>" header.
func extractAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}
