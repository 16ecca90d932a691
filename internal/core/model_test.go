package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "example.com", EmailMetadata{From: "alice@Example.com"}.SenderDomain())
	assert.Equal(t, "news.shop.io", EmailMetadata{From: "deals@news.shop.io"}.SenderDomain())
	assert.Equal(t, "", EmailMetadata{From: "not-an-address"}.SenderDomain())
	assert.Equal(t, "", EmailMetadata{From: ""}.SenderDomain())
}

func TestSaferAction(t *testing.T) {
	assert.Equal(t, ActionKeep, SaferAction(ActionKeep, ActionTrash))
	assert.Equal(t, ActionKeep, SaferAction(ActionTrash, ActionKeep))
	assert.Equal(t, ActionReview, SaferAction(ActionArchive, ActionReview))
	assert.Equal(t, ActionArchive, SaferAction(ActionArchive, ActionTrash))
	assert.Equal(t, ActionTrash, SaferAction(ActionTrash, ActionTrash))
}

func TestFingerprintCollapsesIssueNumbers(t *testing.T) {
	issue41 := EmailMetadata{From: "news@weekly.dev", Subject: "Weekly Digest Issue 41"}
	issue42 := EmailMetadata{From: "news@weekly.dev", Subject: "Weekly Digest Issue 42"}
	assert.Equal(t, Fingerprint(issue41), Fingerprint(issue42))
}

func TestFingerprintIgnoresCaseAndSpacing(t *testing.T) {
	a := EmailMetadata{From: "deals@shop.com", Subject: "Big  Sale   Today"}
	b := EmailMetadata{From: "other@SHOP.com", Subject: "big sale today"}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintDistinguishesDomains(t *testing.T) {
	a := EmailMetadata{From: "news@alpha.com", Subject: "Hello"}
	b := EmailMetadata{From: "news@beta.com", Subject: "Hello"}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestIsValidAction(t *testing.T) {
	for _, valid := range []string{"keep", "archive", "trash", "review"} {
		assert.True(t, IsValidAction(valid), valid)
	}
	assert.False(t, IsValidAction("delete"))
	assert.False(t, IsValidAction(""))
}
