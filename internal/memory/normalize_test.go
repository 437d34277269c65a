package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tidemark-ai/recollect/internal/db"
)

func TestNormalizeContentMentions(t *testing.T) {
	assert.Equal(t, "hey @someone look at #channel", NormalizeContent("hey <@123456> look at <#789>"))
	assert.Equal(t, "ping @someone and @group", NormalizeContent("ping <@!42> and <@&77>"))
}

func TestNormalizeContentLinks(t *testing.T) {
	out := NormalizeContent("see https://example.com/some/long/path?q=1 for details")
	assert.Equal(t, "see (link: example.com) for details", out)
}

func TestAttachmentPlaceholder(t *testing.T) {
	assert.Equal(t, "[image attachment]", AttachmentPlaceholder([]db.Attachment{{ContentType: "image/png"}}))
	assert.Equal(t, "[file attachment]", AttachmentPlaceholder([]db.Attachment{{Name: "report.pdf", ContentType: "application/pdf"}}))
	assert.Equal(t, "", AttachmentPlaceholder(nil))
}

func TestNormalizeItemContentTruncates(t *testing.T) {
	it := &db.Item{Content: strings.Repeat("x", ItemMaxChars*2)}
	out := normalizeItemContent(it)
	assert.Len(t, out, ItemMaxChars)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestNormalizeItemContentDeleted(t *testing.T) {
	it := &db.Item{Deleted: true}
	assert.Equal(t, "[message deleted]", normalizeItemContent(it))
}

func TestNormalizeItemContentAttachmentOnly(t *testing.T) {
	it := &db.Item{Metadata: db.ItemMetadata{Attachments: []db.Attachment{{Kind: "image"}}}}
	assert.Equal(t, "[image attachment]", normalizeItemContent(it))
}
