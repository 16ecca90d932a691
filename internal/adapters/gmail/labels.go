package gmail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gmail "google.golang.org/api/gmail/v1"
)

// systemLabels are referenced by ID directly rather than looked up.
var systemLabels = map[string]bool{
	"INBOX":   true,
	"STARRED": true,
	"UNREAD":  true,
	"SPAM":    true,
	"TRASH":   true,
}

// resolveLabels maps label names to IDs, creating user labels that do not
// exist yet. Resolutions are cached for the life of the adapter.
func (m *Mailbox) resolveLabels(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	m.labelMu.Lock()
	defer m.labelMu.Unlock()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if systemLabels[name] {
			ids = append(ids, name)
			continue
		}
		if id, ok := m.labelIDs[name]; ok {
			ids = append(ids, id)
			continue
		}
		id, err := m.findOrCreateLabel(ctx, name)
		if err != nil {
			return nil, err
		}
		m.labelIDs[name] = id
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Mailbox) findOrCreateLabel(ctx context.Context, name string) (string, error) {
	resp, err := m.srv.Users.Labels.List(m.user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, label := range resp.Labels {
		if label.Name == name {
			return label.Id, nil
		}
	}

	created, err := m.srv.Users.Labels.Create(m.user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}
	m.logger.Info("Created mailbox label", zap.String("label", name))
	return created.Id, nil
}
