package markup

import (
	"fmt"
	"strings"

	"github.com/harrison/resultsync/internal/models"
)

const headerRow = `<tr><th>Requirements</th><th>Test Name</th><th>Test Description</th><th>Expected Result</th><th>Result</th><th>Tester</th><th>Date</th><th>Test Setup</th><th>Previous Results</th><th>Comments</th></tr>`

const requirementDiv = `<div class="content-wrapper"><p><ac:structured-macro ac:name="requirement" ac:schema-version="1" ac:macro-id="53ae0f9b"><ac:parameter ac:name="key">REQ-1</ac:parameter></ac:structured-macro></p></div>`

func passBadge() string { return fmt.Sprintf(statusBadge, successMacroID, successText) }
func failBadge() string { return fmt.Sprintf(statusBadge, failMacroID, failText) }

// dataRow builds a canonical table row from cell contents.
func dataRow(cells ...string) string {
	var sb strings.Builder
	sb.WriteString("<tr>")
	for _, c := range cells {
		sb.WriteString("<td>" + c + "</td>")
	}
	for i := len(cells); i < len(models.Columns); i++ {
		sb.WriteString("<td></td>")
	}
	sb.WriteString("</tr>")
	return sb.String()
}

func resultsTable(rows ...string) string {
	return `<table class="wrapped"><colgroup><col /><col /></colgroup><tbody>` +
		headerRow + strings.Join(rows, "") + `</tbody></table>`
}

func samplePage() (page, table, row1, row2 string) {
	row1 = dataRow(
		requirementDiv,
		`<div style="display: none;">t1</div>First test`,
		`line one<br />line <strong>two</strong>`,
		`<em>ok</em>`,
		passBadge(),
		"Jane Doe",
		"01.02.2024",
		"setup A",
		"<br />",
		"",
	)
	row2 = dataRow(
		"",
		`<div style="display: none;">t0</div>Another test`,
		"desc",
		"exp",
		failBadge(),
		"Jane Doe",
		"01.02.2024",
		"setup B",
		"Success<br />setup Z",
		"flaky",
	)
	table = resultsTable(row1, row2)
	page = `<p>Intro</p><table><tbody><tr><th>Narrow</th></tr></tbody></table>` + table + `<p>Outro</p>`
	return page, table, row1, row2
}
