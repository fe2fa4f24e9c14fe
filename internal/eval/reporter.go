package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/zombor/receipt-cam/internal/scanning"
)

// PromptMethod names how the prompt is built; every run sends one
// correction-aware prompt per image
const PromptMethod = "single_prompt"

// receiptColumns names the CSV column for each receipt field
var receiptColumns = map[string]string{
	"vendor":  "vendor_name",
	"invoice": "invoice_number",
}

// Header returns the CSV header row
func Header() []string {
	header := []string{"image_file", "vendor", "prompt_method", "timestamp"}
	for _, field := range scanning.Fields {
		if col, ok := receiptColumns[field]; ok {
			field = col
		}
		header = append(header, field)
	}
	return append(header, "duration_ms", "error")
}

// Row returns the CSV row for one result; failed results leave the receipt columns blank
func (r Result) Row() []string {
	row := []string{r.ImageFile, r.Vendor, PromptMethod, r.Timestamp.Format(time.RFC3339)}
	for _, field := range scanning.Fields {
		value := ""
		if r.Receipt != nil {
			value, _ = r.Receipt.Get(field)
		}
		row = append(row, value)
	}

	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return append(row, strconv.FormatInt(r.Duration.Milliseconds(), 10), errText)
}

// WriteCSV writes the header and one row per result
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// VendorStats is how one vendor performed
type VendorStats struct {
	Vendor    string
	Count     int
	Failed    int
	Succeeded int
}

// SuccessRate returns the percentage of successful evaluations
func (s VendorStats) SuccessRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Count) * 100
}

// Stats groups results by vendor in first-seen order
func Stats(results []Result) []VendorStats {
	var stats []VendorStats
	index := make(map[string]int)
	for _, r := range results {
		i, ok := index[r.Vendor]
		if !ok {
			i = len(stats)
			index[r.Vendor] = i
			stats = append(stats, VendorStats{Vendor: r.Vendor})
		}
		stats[i].Count++
		if r.Err != nil {
			stats[i].Failed++
		} else {
			stats[i].Succeeded++
		}
	}
	return stats
}

// WriteSummary writes overall and per-vendor statistics
func WriteSummary(w io.Writer, results []Result) error {
	images := make(map[string]bool)
	failed := 0
	for _, r := range results {
		images[r.ImageFile] = true
		if r.Err != nil {
			failed++
		}
	}
	stats := Stats(results)

	vendors := ""
	for i, s := range stats {
		if i > 0 {
			vendors += ", "
		}
		vendors += s.Vendor
	}

	fmt.Fprintf(w, "=== Evaluation Summary ===\n\n")
	fmt.Fprintf(w, "Total evaluations: %d\n", len(results))
	fmt.Fprintf(w, "Images processed: %d\n", len(images))
	fmt.Fprintf(w, "Vendors used: %s\n\n", vendors)
	fmt.Fprintf(w, "Successful evaluations: %d\n", len(results)-failed)
	fmt.Fprintf(w, "Failed evaluations: %d\n\n", failed)
	fmt.Fprintf(w, "=== Vendor Performance ===\n")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "vendor\tcount\tfailed\tsuccess_rate")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\n", s.Vendor, s.Count, s.Failed, s.SuccessRate())
	}
	return tw.Flush()
}

// Save writes evals_results_<timestamp>.csv and its _summary.txt into dir and
// returns both paths
func Save(dir string, results []Result, at time.Time) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}

	base := filepath.Join(dir, "evals_results_"+at.Format("20060102_150405"))
	csvPath := base + ".csv"
	summaryPath := base + "_summary.txt"

	if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, results) }); err != nil {
		return "", "", err
	}
	if err := writeFile(summaryPath, func(w io.Writer) error { return WriteSummary(w, results) }); err != nil {
		return "", "", err
	}
	return csvPath, summaryPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return nil
}
