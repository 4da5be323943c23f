package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// frontmatterDelim separates the metadata header from the document body.
const frontmatterDelim = "---"

// GuideDocument is one stored guide: a front-matter header (key:value
// metadata) followed by a markdown body. The header is carried verbatim in
// RawHeader so a rewrite never disturbs keys, ordering, or formatting the
// pipeline does not own; Frontmatter is a parsed, read-only view of it.
type GuideDocument struct {
	ID          string
	Path        string
	RawHeader   string // includes both delimiter lines and trailing newline; "" when absent
	Frontmatter map[string]string
	Body        string
}

// ParseDocument splits raw file content into header and body. A non-nil
// error reports a malformed YAML header; the returned document is still
// usable (header preserved verbatim, Frontmatter empty).
func ParseDocument(id, path, raw string) (GuideDocument, error) {
	doc := GuideDocument{ID: id, Path: path, Body: raw}

	if !strings.HasPrefix(raw, frontmatterDelim+"\n") {
		return doc, nil
	}

	rest := raw[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		// Unterminated header; treat the whole file as body.
		return doc, nil
	}

	headerEnd := len(frontmatterDelim) + 1 + end + len("\n"+frontmatterDelim+"\n")
	doc.RawHeader = raw[:headerEnd]
	doc.Body = raw[headerEnd:]

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &parsed); err != nil {
		return doc, eris.Wrapf(err, "model: parse frontmatter of %s", id)
	}
	doc.Frontmatter = make(map[string]string, len(parsed))
	for k, v := range parsed {
		doc.Frontmatter[k] = fmt.Sprintf("%v", v)
	}
	return doc, nil
}

// Render reassembles the document with a replacement body. The header bytes
// are emitted exactly as read.
func (d GuideDocument) Render(body string) string {
	return d.RawHeader + body
}

// WithOwnedKey returns a copy of the document whose header carries the given
// pipeline-owned key, appended as the last header line. Existing keys and
// their order are untouched; documents without a header are returned as-is
// (the body marker remains the only idempotency signal for those).
func (d GuideDocument) WithOwnedKey(key, value string) GuideDocument {
	if d.RawHeader == "" {
		return d
	}
	if _, exists := d.Frontmatter[key]; exists {
		return d
	}

	closing := "\n" + frontmatterDelim + "\n"
	idx := strings.LastIndex(d.RawHeader, closing)
	if idx < 0 {
		return d
	}

	out := d
	out.RawHeader = d.RawHeader[:idx] + "\n" + key + ": " + fmt.Sprintf("%q", value) + closing
	out.Frontmatter = make(map[string]string, len(d.Frontmatter)+1)
	for k, v := range d.Frontmatter {
		out.Frontmatter[k] = v
	}
	out.Frontmatter[key] = value
	return out
}
