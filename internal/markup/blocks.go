package markup

import (
	"fmt"
	"strings"

	"github.com/harrison/resultsync/internal/models"
)

// requirementKeyword marks a division holding a linked requirement macro.
const requirementKeyword = "requirement"

// statusMacro is the macro name of the Result status badge.
const statusMacro = "ry-test-result"

// BlockKind tells what an opaque block holds.
type BlockKind int

const (
	// BlockRequirement is a linked requirement division.
	BlockRequirement BlockKind = iota
	// BlockStatus is a Result status badge division.
	BlockStatus
)

// Block is a division that is carried through the merge verbatim and
// represented in cells by a positional placeholder.
type Block struct {
	Index  int
	Kind   BlockKind
	Raw    string
	Status models.Status // set for BlockStatus

	start, end int
}

// Token returns the placeholder standing for the block.
func (b Block) Token() string {
	return blockToken(b.Index)
}

func blockToken(i int) string {
	return fmt.Sprintf("///block-%d///", i)
}

// ExtractBlocks returns the opaque blocks of the document in encounter
// order. A block is a maximal division that carries a requirement macro
// (any attribute mentioning "requirement") or a status badge macro and does
// not itself contain a table. Hidden anchor divisions are never blocks.
func (d *Document) ExtractBlocks() []Block {
	var blocks []Block
	d.root.walk(func(n *node) bool {
		if n.tag != "div" || isHidden(n) {
			return true
		}
		if n.contains(func(c *node) bool { return c.tag == "table" }) {
			return true
		}

		var kind BlockKind
		switch {
		case n.has(hasAttrValue(requirementKeyword)):
			kind = BlockRequirement
		case n.has(hasAttrValue(statusMacro)):
			kind = BlockStatus
		default:
			return true
		}

		raw := n.raw(d.body)
		b := Block{
			Index: len(blocks),
			Kind:  kind,
			Raw:   raw,
			start: n.start,
			end:   n.end,
		}
		if kind == BlockStatus {
			b.Status = statusFromText(textOf(raw))
		}
		blocks = append(blocks, b)
		return false
	})
	return blocks
}

// hasAttrValue matches elements with an attribute value containing keyword.
func hasAttrValue(keyword string) func(*node) bool {
	return func(n *node) bool {
		for _, a := range n.attrs {
			if strings.Contains(a.Val, keyword) {
				return true
			}
		}
		return false
	}
}

// isHidden reports whether a division is an invisible anchor wrapper.
func isHidden(n *node) bool {
	style, ok := n.attr("style")
	if !ok {
		return false
	}
	return hiddenStyle(style)
}

func hiddenStyle(style string) bool {
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(compact, "display:none")
}

// statusFromText reads a status from the visible text of a Result cell.
func statusFromText(text string) models.Status {
	switch {
	case strings.Contains(text, successText):
		return models.StatusPassed
	case strings.Contains(text, failText):
		return models.StatusFailed
	default:
		return models.StatusOther
	}
}
