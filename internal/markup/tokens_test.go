package markup

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/resultsync/internal/models"
)

func newTestCodec(body string) *Codec {
	doc := Parse(body)
	return NewCodec(doc, doc.ExtractBlocks(), NewRequirementSet(), "LWZ")
}

func TestTokenizeRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		tokenized string
	}{
		{
			name:      "plain text",
			body:      "just text &amp; entities",
			tokenized: "just text &amp; entities",
		},
		{
			name:      "line breaks",
			body:      "a<br />b<br />",
			tokenized: "a///n///b///n///",
		},
		{
			name:      "strong and em",
			body:      "<p><strong>bold</strong> and <em>italic</em></p>",
			tokenized: "<p>///ss///bold///es/// and ///sem///italic///eem///</p>",
		},
		{
			name:      "hidden anchor",
			body:      `<div style="display: none;">key</div>Visible`,
			tokenized: "///sdd///key///edd///Visible",
		},
		{
			name:      "plain division kept",
			body:      `<div class="x"><div style="display: none;">k</div></div>`,
			tokenized: `<div class="x">///sdd///k///edd///</div>`,
		},
		{
			name:      "requirement block",
			body:      "before" + requirementDiv + "after",
			tokenized: "before///block-0///after",
		},
		{
			name:      "block inside hidden anchor",
			body:      `<div style="display: none;">` + requirementDiv + `</div>`,
			tokenized: "///sdd//////block-0//////edd///",
		},
		{
			name:      "other markup untouched",
			body:      `<p class="a"><a href="http://example.com/x?y=1&amp;z=2">link</a></p><ac:emoticon ac:name="tick" />`,
			tokenized: `<p class="a"><a href="http://example.com/x?y=1&amp;z=2">link</a></p><ac:emoticon ac:name="tick" />`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCodec(tt.body)
			got := c.tokenize(0, len(tt.body))
			assert.Equal(t, tt.tokenized, got)
			assert.Equal(t, tt.body, c.Detokenize(got))
		})
	}
}

func TestTokenizeNormalizes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare br", "a<br>b", "a<br />b"},
		{"compact br", "a<br/>b", "a<br />b"},
		{"compact hidden style", `<div style="display:none">k</div>`, `<div style="display: none;">k</div>`},
		{"upper case tags", "<STRONG>x</STRONG>", "<strong>x</strong>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCodec(tt.body)
			assert.Equal(t, tt.want, c.Detokenize(c.tokenize(0, len(tt.body))))
		})
	}
}

func TestStrongWithAttributesKeptOpen(t *testing.T) {
	body := `<strong class="x">a</strong>`
	c := newTestCodec(body)
	assert.Equal(t, `<strong class="x">a///es///`, c.tokenize(0, len(body)))
}

func TestDetokenizeStatus(t *testing.T) {
	c := newTestCodec("")

	assert.Equal(t, passBadge(), c.Detokenize(TokenPassed))
	assert.Equal(t, failBadge(), c.Detokenize(TokenFailed))
	assert.Contains(t, passBadge(), `ac:macro-id="7a735669-c8e8-4dad-99d6-3b9f37233d0a"`)
	assert.Contains(t, failBadge(), "(x) Fail")
}

func TestDetokenizeRequirement(t *testing.T) {
	doc := Parse("")
	reqs := NewRequirementSet()
	c := NewCodec(doc, nil, reqs, "LWZ")

	placeholder, err := reqs.Add("REQ-42")
	require.NoError(t, err)
	assert.Equal(t, "///req:REQ-42///", placeholder)

	out := c.Detokenize(placeholder)
	assert.Contains(t, out, `ac:name="requirement"`)
	assert.Contains(t, out, `<ac:parameter ac:name="spaceKey">LWZ</ac:parameter>`)
	assert.Contains(t, out, `<ac:parameter ac:name="key">REQ-42</ac:parameter>`)

	// Same identifier, same macro id.
	assert.Equal(t, out, c.Detokenize(placeholder))

	// Unrecorded identifiers stay as placeholders.
	assert.Equal(t, "///req:REQ-7///", c.Detokenize("///req:REQ-7///"))
}

func TestRequirementSet(t *testing.T) {
	reqs := NewRequirementSet()

	_, err := reqs.Add("B-1")
	require.NoError(t, err)
	_, err = reqs.Add("A-1")
	require.NoError(t, err)
	_, err = reqs.Add("B-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"B-1", "A-1"}, reqs.IDs())
	assert.Equal(t, 2, reqs.Len())
	assert.True(t, reqs.Has("A-1"))
	assert.False(t, reqs.Has("C-1"))

	_, err = reqs.Add("")
	assert.ErrorIs(t, err, ErrEmptyRequirement)
}

func TestRequirementPlaceholderEscapesIdentifier(t *testing.T) {
	doc := Parse("")
	reqs := NewRequirementSet()
	c := NewCodec(doc, nil, reqs, "LWZ")

	for _, id := range []string{"LWZ 090", "a/b", "<x>", "tab\there"} {
		placeholder, err := reqs.Add(id)
		require.NoError(t, err, id)
		assert.True(t, tokenPattern.MatchString(placeholder), placeholder)
		assert.Equal(t, placeholder, tokenPattern.FindString(placeholder), placeholder)

		out := c.Detokenize("<td>" + placeholder + "</td>")
		assert.Contains(t, out, `<ac:parameter ac:name="key">`+EscapeText(id)+`</ac:parameter>`, id)
		assert.NotContains(t, out, "///req:", id)
	}
	assert.Equal(t, "///req:LWZ%20090///", mustAdd(t, reqs, "LWZ 090"))
}

func mustAdd(t *testing.T, reqs *RequirementSet, id string) string {
	t.Helper()
	placeholder, err := reqs.Add(id)
	require.NoError(t, err)
	return placeholder
}

func TestCodecStatus(t *testing.T) {
	body := passBadge() + failBadge()
	c := newTestCodec(body)

	assert.Equal(t, models.StatusPassed, c.Status(TokenPassed))
	assert.Equal(t, models.StatusFailed, c.Status(TokenFailed))
	assert.Equal(t, models.StatusPassed, c.Status("///block-0///"))
	assert.Equal(t, models.StatusFailed, c.Status("///block-1///"))
	assert.Equal(t, models.StatusFailed, c.Status("<p>(x) Fail</p>"))
	assert.Equal(t, models.StatusOther, c.Status(""))
}

func TestCheckCollisions(t *testing.T) {
	require.NoError(t, CheckCollisions(`<p>a/b//c</p><a href="http://x/">x</a>`))

	for _, tok := range []string{TokenNewline, TokenHiddenOpen, TableSentinel, "///block-3///", "///req:X-1///"} {
		err := CheckCollisions("<p>text " + tok + "</p>")
		var collision *TokenCollisionError
		require.True(t, errors.As(err, &collision), tok)
		assert.Equal(t, tok, collision.Token)
		assert.Equal(t, strings.Index("<p>text "+tok, tok), collision.Offset)
	}
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, `a &amp; b &lt;c&gt; "q"///n///`, EscapeText(`a & b <c> "q"///n///`))
}
