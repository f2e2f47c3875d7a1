package report

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// totalPath locates the test count of the latest run in history-trend.json,
// which holds one entry per run with the newest first.
const totalPath = "0.data.total"

// ReadTotal returns the number of tests of the latest run recorded in a
// generated report's history-trend.json.
func ReadTotal(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read run summary: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("run summary %s is not valid JSON", path)
	}

	total := gjson.GetBytes(data, totalPath)
	if !total.Exists() {
		return 0, fmt.Errorf("run summary %s has no %s", path, totalPath)
	}
	return int(total.Int()), nil
}
