package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolate(t *testing.T) {
	page, table, _, _ := samplePage()

	iso, err := Parse(page).Isolate()
	require.NoError(t, err)

	assert.Equal(t, table, iso.Span)
	assert.Equal(t, `<p>Intro</p><table><tbody><tr><th>Narrow</th></tr></tbody></table>`+TableSentinel+`<p>Outro</p>`, iso.Rest)
	assert.Equal(t, page, iso.Reinsert(iso.Span))
}

func TestIsolatePicksLastWideTable(t *testing.T) {
	first := resultsTable(dataRow("", "first"))
	second := resultsTable(dataRow("", "second"))
	page := first + "<p>between</p>" + second

	iso, err := Parse(page).Isolate()
	require.NoError(t, err)
	assert.Equal(t, second, iso.Span)
	assert.Equal(t, first+"<p>between</p>"+TableSentinel, iso.Rest)
}

func TestIsolateMissing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"no table", "<p>nothing here</p>"},
		{"narrow table", `<table><tbody><tr><th>A</th><th>B</th></tr></tbody></table>`},
		{"wide table nested in a cell", `<table><tbody><tr><td>` + resultsTable() + `</td></tr></tbody></table>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iso, err := Parse(tt.body).Isolate()
			assert.ErrorIs(t, err, ErrTableMissing)
			require.NotNil(t, iso)
			assert.Equal(t, tt.body, iso.Rest)
		})
	}
}

func TestIsolateUnclosedCells(t *testing.T) {
	body := `<table><tr><th>1<th>2<th>3<th>4<th>5<th>6<th>7<th>8<th>9<th>10</tr></table>`

	iso, err := Parse(body).Isolate()
	require.NoError(t, err)
	assert.Equal(t, body, iso.Span)
}

func TestExtractBlocks(t *testing.T) {
	body := `<div style="display: none;">key</div>` +
		requirementDiv +
		`<div class="plain"><p>text</p></div>` +
		passBadge() +
		`<div class="requirement-wrapper">` + resultsTable() + `</div>`

	blocks := Parse(body).ExtractBlocks()
	require.Len(t, blocks, 2)

	assert.Equal(t, BlockRequirement, blocks[0].Kind)
	assert.Equal(t, requirementDiv, blocks[0].Raw)
	assert.Equal(t, "///block-0///", blocks[0].Token())

	assert.Equal(t, BlockStatus, blocks[1].Kind)
	assert.Equal(t, passBadge(), blocks[1].Raw)
	assert.Equal(t, "///block-1///", blocks[1].Token())
}

func TestExtractBlocksMaximal(t *testing.T) {
	outer := `<div class="outer"><div class="inner">` + requirementDiv + `</div></div>`

	blocks := Parse(outer).ExtractBlocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, outer, blocks[0].Raw)
}
