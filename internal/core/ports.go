package core

import (
	"context"
	"time"
)

// ClassifyRequest is the bounded payload sent to the external classifier.
// It carries the sender domain (never the full address), a truncated
// subject and snippet, and the message age. Nothing else may be added.
type ClassifyRequest struct {
	FromDomain string `json:"from_domain"`
	Subject    string `json:"subject"`
	Snippet    string `json:"snippet"`
	DaysOld    int    `json:"days_old"`
}

// Classifier defines the interface for the external AI classification
// collaborator (Tier 2).
type Classifier interface {
	// Classify analyzes bounded email metadata and proposes a disposition.
	Classify(ctx context.Context, req ClassifyRequest) (*TierResult, error)
}

// CacheRepository defines the interface for caching classification results
// by fingerprint.
type CacheRepository interface {
	// Get retrieves an unexpired entry for a fingerprint.
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a cache entry.
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry.
	Delete(ctx context.Context, fingerprint string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// Mailbox defines the mutations and reads the engine needs from the mail
// platform. There is deliberately no permanent-delete operation: the most
// destructive call available is the platform's own recoverable trash.
type Mailbox interface {
	// Search returns up to max thread identifiers matching the query.
	Search(ctx context.Context, query string, max int64) ([]string, error)

	// GetMetadata reads bounded metadata for one message.
	GetMetadata(ctx context.Context, id string) (EmailMetadata, error)

	// ModifyLabels applies and removes labels on a message.
	ModifyLabels(ctx context.Context, id string, add, remove []string) error

	// Archive removes the message from the inbox without deleting it.
	Archive(ctx context.Context, id string) error

	// Trash moves the message to the platform's recoverable trash.
	Trash(ctx context.Context, id string) error
}

// Clock abstracts time for deterministic testing of deadlines and windows.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
