package markup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/harrison/resultsync/internal/models"
)

// Placeholders substituted for inline markup inside table cells.
const (
	TokenNewline     = "///n///"
	TokenStrongOpen  = "///ss///"
	TokenStrongClose = "///es///"
	TokenEmOpen      = "///sem///"
	TokenEmClose     = "///eem///"
	TokenHiddenOpen  = "///sdd///"
	TokenHiddenClose = "///edd///"
	TokenPassed      = "///pass///"
	TokenFailed      = "///fail///"
)

// EmptyHistory is the value of a Previous Results cell with no archived runs.
const EmptyHistory = TokenNewline

// Canonical spellings written back on egress.
const (
	canonicalBreak      = "<br />"
	canonicalHiddenOpen = `<div style="display: none;">`
)

const (
	successText = "(/) Success"
	failText    = "(x) Fail"
)

const (
	successMacroID = "7a735669-c8e8-4dad-99d6-3b9f37233d0a"
	failMacroID    = "9b70be61-3d37-4eed-98b2-ee4219283dac"
)

const statusBadge = `<div class="content-wrapper"><p><ac:structured-macro ac:name="ry-test-result" ac:schema-version="1" ac:macro-id="%s"><ac:parameter ac:name="status">%s</ac:parameter></ac:structured-macro></p></div>`

const requirementLink = `<div class="content-wrapper"><p><ac:structured-macro ac:name="requirement" ac:schema-version="1" ac:macro-id="%s"><ac:parameter ac:name="spaceKey">%s</ac:parameter><ac:parameter ac:name="freetext">Link</ac:parameter><ac:parameter ac:name="type">LINK</ac:parameter><ac:parameter ac:name="key">%s</ac:parameter></ac:structured-macro></p></div>`

// tokenPattern matches every placeholder form, including the table sentinel.
var tokenPattern = regexp.MustCompile(`///(n|ss|es|sem|eem|sdd|edd|pass|fail|TABLE|block-\d+|req:[^/<>\s]+)///`)

// TokenCollisionError is returned when a page body already contains
// placeholder text, which would make the conversion ambiguous.
type TokenCollisionError struct {
	Token  string
	Offset int
}

func (e *TokenCollisionError) Error() string {
	return fmt.Sprintf("page body already contains placeholder %q at offset %d", e.Token, e.Offset)
}

// CheckCollisions fails when body contains any placeholder text.
func CheckCollisions(body string) error {
	loc := tokenPattern.FindStringIndex(body)
	if loc == nil {
		return nil
	}
	return &TokenCollisionError{Token: body[loc[0]:loc[1]], Offset: loc[0]}
}

// StatusToken returns the Result cell placeholder for a status, or "" for
// statuses that are not recorded.
func StatusToken(s models.Status) string {
	switch s {
	case models.StatusPassed:
		return TokenPassed
	case models.StatusFailed:
		return TokenFailed
	default:
		return ""
	}
}

// EscapeText escapes free text for insertion into a cell. Only &, < and >
// are escaped so placeholders and quotes pass through unchanged.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Codec converts cell markup to placeholder text and back for one merge.
type Codec struct {
	doc      *Document
	blocks   []Block
	reqs     *RequirementSet
	spaceKey string
}

// NewCodec returns a Codec for doc. Blocks are the blocks extracted from the
// same document; reqs collects the requirement identifiers written during
// the merge and spaceKey is the space their links point to.
func NewCodec(doc *Document, blocks []Block, reqs *RequirementSet, spaceKey string) *Codec {
	return &Codec{doc: doc, blocks: blocks, reqs: reqs, spaceKey: spaceKey}
}

// tokenize converts body[start:end] to placeholder text. Blocks inside the
// range are replaced by their placeholder; other markup is kept verbatim.
func (c *Codec) tokenize(start, end int) string {
	var sb strings.Builder
	var divs []bool // open divisions, true when hidden

	pos := start
	for _, b := range c.blocks {
		if b.end <= start || b.start >= end {
			continue
		}
		divs = tokenizeRange(&sb, c.doc.body[pos:b.start], divs)
		sb.WriteString(b.Token())
		pos = b.end
	}
	tokenizeRange(&sb, c.doc.body[pos:end], divs)
	return sb.String()
}

// tokenizeRange writes the tokenized form of s to sb. The stack of open
// divisions is carried across ranges so a hidden division may enclose a
// block.
func tokenizeRange(sb *strings.Builder, s string, divs []bool) []bool {
	z := newTokenizer(s)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return divs
		}
		raw := string(z.Raw())
		name, hasAttr := z.TagName()
		tag := string(name)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch {
			case tag == "br":
				sb.WriteString(TokenNewline)
				continue
			case tag == "strong" && !hasAttr && tt == html.StartTagToken:
				sb.WriteString(TokenStrongOpen)
				continue
			case tag == "em" && !hasAttr && tt == html.StartTagToken:
				sb.WriteString(TokenEmOpen)
				continue
			case tag == "div" && tt == html.StartTagToken:
				hidden := divHidden(z, hasAttr)
				divs = append(divs, hidden)
				if hidden {
					sb.WriteString(TokenHiddenOpen)
					continue
				}
			}
		case html.EndTagToken:
			switch tag {
			case "strong":
				sb.WriteString(TokenStrongClose)
				continue
			case "em":
				sb.WriteString(TokenEmClose)
				continue
			case "div":
				if len(divs) > 0 {
					hidden := divs[len(divs)-1]
					divs = divs[:len(divs)-1]
					if hidden {
						sb.WriteString(TokenHiddenClose)
						continue
					}
				}
			}
		}
		sb.WriteString(raw)
	}
}

func divHidden(z *html.Tokenizer, hasAttr bool) bool {
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		if string(k) == "style" && hiddenStyle(string(v)) {
			return true
		}
	}
	return false
}

// Detokenize converts placeholder text back to markup. Status placeholders
// become status badges and recorded requirement placeholders become
// requirement links.
func (c *Codec) Detokenize(s string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[3 : len(tok)-3]
		switch name {
		case "n":
			return canonicalBreak
		case "ss":
			return "<strong>"
		case "es":
			return "</strong>"
		case "sem":
			return "<em>"
		case "eem":
			return "</em>"
		case "sdd":
			return canonicalHiddenOpen
		case "edd":
			return "</div>"
		case "pass":
			return fmt.Sprintf(statusBadge, successMacroID, successText)
		case "fail":
			return fmt.Sprintf(statusBadge, failMacroID, failText)
		}

		if idx, ok := strings.CutPrefix(name, "block-"); ok {
			i, err := strconv.Atoi(idx)
			if err == nil && i < len(c.blocks) {
				return c.blocks[i].Raw
			}
			return tok
		}
		if escaped, ok := strings.CutPrefix(name, "req:"); ok {
			if id, ok := c.reqs.lookup(escaped); ok {
				return c.requirementMarkup(id)
			}
		}
		return tok
	})
}

func (c *Codec) requirementMarkup(id string) string {
	macroID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))
	return fmt.Sprintf(requirementLink, macroID, EscapeText(c.spaceKey), EscapeText(id))
}

// Status reads the status recorded in a tokenized Result cell.
func (c *Codec) Status(cell string) models.Status {
	switch {
	case strings.Contains(cell, TokenPassed):
		return models.StatusPassed
	case strings.Contains(cell, TokenFailed):
		return models.StatusFailed
	}
	for _, b := range c.blocks {
		if b.Kind == BlockStatus && strings.Contains(cell, b.Token()) {
			return b.Status
		}
	}
	return statusFromText(textOf(cell))
}
