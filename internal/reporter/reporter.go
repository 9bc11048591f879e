package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoprobe/internal/models"

	"github.com/rs/zerolog/log"
)

// ScanSummary provides a high-level overview of the scan results.
type ScanSummary struct {
	TargetURL       string    `json:"target_url"`
	ScanStartTime   time.Time `json:"scan_start_time"`
	ScanEndTime     time.Time `json:"scan_end_time"`
	TotalDuration   string    `json:"total_duration"`
	ModulesRun      int       `json:"modules_run"`
	PositiveResults int       `json:"positive_results"`
}

// Report is the top-level structure for the final report.
type Report struct {
	Summary ScanSummary           `json:"summary"`
	Results []models.ModuleResult `json:"results"`
}

// NewReport builds a report from the results of one run.
func NewReport(targetURL string, start, end time.Time, results []models.ModuleResult) Report {
	positives := 0
	for _, r := range results {
		if r.Positive {
			positives++
		}
	}
	return Report{
		Summary: ScanSummary{
			TargetURL:       targetURL,
			ScanStartTime:   start,
			ScanEndTime:     end,
			TotalDuration:   end.Sub(start).Round(time.Millisecond).String(),
			ModulesRun:      len(results),
			PositiveResults: positives,
		},
		Results: results,
	}
}

// Exporter persists a report somewhere.
type Exporter interface {
	Export(ctx context.Context, report Report) error
}

// JSONExporter handles the creation of the JSON report file.
type JSONExporter struct {
	OutputPath string
}

// NewJSONExporter creates a new exporter that will write to the specified path.
func NewJSONExporter(outputPath string) (*JSONExporter, error) {
	// Ensure the output directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &JSONExporter{OutputPath: outputPath}, nil
}

// Export generates and saves the JSON report.
func (e *JSONExporter) Export(_ context.Context, report Report) error {
	file, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(e.OutputPath, file, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report to file: %w", err)
	}

	log.Info().Str("path", e.OutputPath).Msg("JSON report saved successfully.")
	return nil
}

// TxtExporter handles the creation of the TXT report file.
type TxtExporter struct {
	OutputPath string
}

// NewTxtExporter creates a new exporter that will write to the specified path.
func NewTxtExporter(outputPath string) (*TxtExporter, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &TxtExporter{OutputPath: outputPath}, nil
}

// Export generates and saves the TXT report.
func (e *TxtExporter) Export(_ context.Context, report Report) error {
	var b strings.Builder

	// --- Summary ---
	summary := report.Summary
	b.WriteString("Scan Report\n")
	b.WriteString("===================================\n")
	b.WriteString("Summary\n")
	b.WriteString("-----------------------------------\n")
	fmt.Fprintf(&b, "Target URL:          %s\n", summary.TargetURL)
	fmt.Fprintf(&b, "Scan Start Time:     %s\n", summary.ScanStartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Scan End Time:       %s\n", summary.ScanEndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Duration:      %s\n", summary.TotalDuration)
	fmt.Fprintf(&b, "Modules Run:         %d\n", summary.ModulesRun)
	fmt.Fprintf(&b, "Positive Results:    %d\n", summary.PositiveResults)
	b.WriteString("===================================\n")

	// --- Results ---
	b.WriteString("Results\n")
	b.WriteString("-----------------------------------\n")
	if len(report.Results) == 0 {
		b.WriteString("\nNo modules were run.\n")
	}
	for _, r := range report.Results {
		status := "negative"
		if r.Positive {
			status = "POSITIVE"
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Module:         %s\n", r.Name)
		fmt.Fprintf(&b, "Status:         %s\n", status)
		if r.Result != nil {
			detail, err := json.MarshalIndent(r.Result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal result of %s: %w", r.Name, err)
			}
			fmt.Fprintf(&b, "Result:\n%s\n", detail)
		}
		b.WriteString("-----------------------------------\n")
	}

	if err := os.WriteFile(e.OutputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write TXT report to file: %w", err)
	}
	log.Info().Str("path", e.OutputPath).Msg("TXT report saved successfully.")
	return nil
}

// ReportList is a list reports are appended to, such as *redis.ReportList.
type ReportList interface {
	Key() string
	Push(ctx context.Context, data []byte) (int64, error)
}

// RedisPublisher appends every report as a JSON document to a Redis list.
type RedisPublisher struct {
	list ReportList
}

// NewRedisPublisher creates a publisher pushing to list.
func NewRedisPublisher(list ReportList) *RedisPublisher {
	return &RedisPublisher{list: list}
}

// Export pushes the report onto the list.
func (p *RedisPublisher) Export(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	n, err := p.list.Push(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to publish report to redis: %w", err)
	}
	log.Info().Str("key", p.list.Key()).Int64("length", n).Msg("Report published to Redis.")
	return nil
}
