package memory

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tidemark-ai/recollect/internal/db"
)

const (
	// MaxIngestChars is the hard cap above which an inbound message is
	// dropped from context entirely (not truncated), to keep pasted dumps
	// from polluting every later context pack.
	MaxIngestChars = 8000

	// ItemMaxChars is the per-item cap applied during pack assembly
	ItemMaxChars = 420
)

var (
	userMentionRe    = regexp.MustCompile(`<@!?\d+>`)
	roleMentionRe    = regexp.MustCompile(`<@&\d+>`)
	channelMentionRe = regexp.MustCompile(`<#\d+>`)
	urlRe            = regexp.MustCompile(`https?://[^\s<>]+`)
)

// NormalizeContent collapses platform syntax out of message text: user and
// role mentions become @someone, channel references become #channel, and
// URLs become a (link: domain) marker. Pure; the selection and formatting
// code never sees raw platform conventions.
func NormalizeContent(content string) string {
	content = userMentionRe.ReplaceAllString(content, "@someone")
	content = roleMentionRe.ReplaceAllString(content, "@group")
	content = channelMentionRe.ReplaceAllString(content, "#channel")
	content = urlRe.ReplaceAllStringFunc(content, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "(link)"
		}
		return "(link: " + u.Host + ")"
	})
	return strings.TrimSpace(content)
}

// AttachmentPlaceholder renders a contentless attachment-bearing item as a
// fixed placeholder token describing the attachment kind.
func AttachmentPlaceholder(atts []db.Attachment) string {
	if len(atts) == 0 {
		return ""
	}
	kind := atts[0].Kind
	if kind == "" {
		kind = kindFromContentType(atts[0].ContentType)
	}
	switch kind {
	case "image":
		return "[image attachment]"
	case "audio":
		return "[audio attachment]"
	case "video":
		return "[video attachment]"
	default:
		return "[file attachment]"
	}
}

// kindFromContentType infers an attachment kind from its MIME type
func kindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "file"
	}
}

// truncateWithEllipsis hard-truncates text to maxChars with an ellipsis marker
func truncateWithEllipsis(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	if maxChars <= 3 {
		return text[:maxChars]
	}
	return text[:maxChars-3] + "..."
}

// normalizeItemContent applies the full per-item normalization pipeline:
// platform syntax collapse, attachment placeholder substitution, and the
// per-item character cap. Applied per item, independent of selection.
func normalizeItemContent(it *db.Item) string {
	content := NormalizeContent(it.Content)
	if content == "" {
		if it.Deleted {
			return "[message deleted]"
		}
		if ph := AttachmentPlaceholder(it.Metadata.Attachments); ph != "" {
			return ph
		}
	}
	return truncateWithEllipsis(content, ItemMaxChars)
}

// hasImageAttachment reports whether any attachment on the item is an image
func hasImageAttachment(it *db.Item) bool {
	for _, a := range it.Metadata.Attachments {
		if a.Kind == "image" || kindFromContentType(a.ContentType) == "image" {
			return true
		}
	}
	return false
}
