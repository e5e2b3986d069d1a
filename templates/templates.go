package templates

import (
	"embed"
	"fmt"
)

//go:embed report.html.tmpl
var templateFS embed.FS

// ReportHTML returns the content of the embedded HTML report template
func ReportHTML() (string, error) {
	content, err := templateFS.ReadFile("report.html.tmpl")
	if err != nil {
		return "", fmt.Errorf("failed to read embedded report template: %w", err)
	}
	return string(content), nil
}
