// Package report renders verification results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/intent"
	"github.com/signalsfoundry/netintent/internal/score"
)

// Report is the complete outcome of one verification run.
type Report struct {
	RunID       string            `json:"run_id"`
	Topology    string            `json:"topology"`
	Synthesized bool              `json:"synthesized_config"`
	GeneratedAt time.Time         `json:"generated_at"`
	Counts      core.Counts       `json:"counts"`
	Defects     []core.Defect     `json:"defects,omitempty"`
	Accuracy    score.Summary     `json:"accuracy"`
	Instances   []intent.Instance `json:"instances"`
}

// New assembles a report for evaluated instances of topo.
func New(topo *core.Topology, instances []intent.Instance) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Topology:    topo.Name(),
		Synthesized: topo.Synthesized(),
		GeneratedAt: time.Now().UTC(),
		Counts:      topo.Counts(),
		Defects:     topo.Defects(),
		Accuracy:    score.Compute(instances),
		Instances:   instances,
	}
}

// Failed returns the instances that did not pass, in report order.
func (r *Report) Failed() []intent.Instance {
	var out []intent.Instance
	for _, in := range r.Instances {
		if !in.Result.Pass {
			out = append(out, in)
		}
	}
	return out
}

// Format selects a writer.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatTable Format = "table"
)

// Formats lists the supported formats.
func Formats() []Format { return []Format{FormatJSON, FormatJSONL, FormatTable} }

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("report: unknown format %q (want json, jsonl or table)", s)
}

// Options tune the table writer. The JSON writers ignore them.
type Options struct {
	// Color enables ANSI colours in the summary.
	Color bool
	// Verbose lists passing instances too.
	Verbose bool
}

// Write renders r to w in format f.
func Write(w io.Writer, r *Report, f Format, opts Options) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatJSONL:
		return writeJSONL(w, r)
	case FormatTable:
		return writeTable(w, r, opts)
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
}

// Record is one line of the jsonl stream: a "run" header, one "instance"
// per evaluated instance, then an "accuracy" trailer.
type Record struct {
	Type        string           `json:"type"`
	RunID       string           `json:"run_id"`
	Topology    string           `json:"topology,omitempty"`
	GeneratedAt *time.Time       `json:"generated_at,omitempty"`
	Counts      *core.Counts     `json:"counts,omitempty"`
	Defects     []core.Defect    `json:"defects,omitempty"`
	Instance    *intent.Instance `json:"instance,omitempty"`
	Accuracy    *score.Summary   `json:"accuracy,omitempty"`
}

func writeJSONL(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	header := Record{
		Type:        "run",
		RunID:       r.RunID,
		Topology:    r.Topology,
		GeneratedAt: &r.GeneratedAt,
		Counts:      &r.Counts,
		Defects:     r.Defects,
	}
	if err := enc.Encode(header); err != nil {
		return err
	}
	for i := range r.Instances {
		if err := enc.Encode(Record{Type: "instance", RunID: r.RunID, Instance: &r.Instances[i]}); err != nil {
			return err
		}
	}
	return enc.Encode(Record{Type: "accuracy", RunID: r.RunID, Accuracy: &r.Accuracy})
}

func writeTable(w io.Writer, r *Report, opts Options) error {
	noColor := color.New()
	header, good, bad := noColor, noColor, noColor
	if opts.Color {
		header = color.New(color.Bold)
		good = color.New(color.FgGreen)
		bad = color.New(color.FgRed)
	}
	status := func(pass bool) string {
		if pass {
			return good.Sprint("PASS")
		}
		return bad.Sprint("FAIL")
	}
	// fatih/color consults its global NoColor flag; force the choice made
	// by the caller.
	for _, c := range []*color.Color{header, good, bad} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	header.Fprintf(w, "Topology %s (run %s)\n", r.Topology, r.RunID)
	fmt.Fprintf(w, "%d nodes, %d links, %d VPNs, %d VRFs, %d TE policies", r.Counts.Nodes, r.Counts.Links,
		r.Counts.VPNs, r.Counts.VRFs, r.Counts.Policies)
	if r.Synthesized {
		fmt.Fprint(w, " (ground-truth configuration)")
	}
	fmt.Fprintln(w)
	for _, d := range r.Defects {
		fmt.Fprintf(w, "defect: %s %s: %s\n", d.Kind, d.Subject, d.Detail)
	}
	fmt.Fprintln(w)

	rows := [][]string{}
	for _, in := range r.Instances {
		if in.Result.Pass && !opts.Verbose {
			continue
		}
		rows = append(rows, []string{in.ID, status(in.Result.Pass), in.Result.Diagnostic})
	}
	if len(rows) > 0 {
		newTable(w, []string{"INSTANCE", "RESULT", "DIAGNOSTIC"}, rows).Render()
		fmt.Fprintln(w)
	}

	acc := [][]string{accuracyRow("overall", r.Accuracy.Overall)}
	for _, c := range intent.Categories() {
		acc = append(acc, accuracyRow(string(c), r.Accuracy.Categories[c]))
	}
	kinds := make([]intent.Kind, 0, len(r.Accuracy.Kinds))
	for k := range r.Accuracy.Kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		acc = append(acc, accuracyRow(k.String(), r.Accuracy.Kinds[k]))
	}
	newTable(w, []string{"SCOPE", "PASSED", "TOTAL", "ACCURACY"}, acc).Render()

	failed := len(r.Failed())
	if failed == 0 {
		good.Fprintf(w, "\nall %d intent instances passed\n", len(r.Instances))
	} else {
		bad.Fprintf(w, "\n%d of %d intent instances failed\n", failed, len(r.Instances))
	}
	return nil
}

func newTable(w io.Writer, header []string, rows [][]string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	table.AppendBulk(rows)
	return table
}

func accuracyRow(scope string, a score.Accuracy) []string {
	value := "n/a"
	if a.Defined {
		value = strconv.FormatFloat(a.Value, 'f', 4, 64)
	}
	return []string{scope, strconv.Itoa(a.Passed), strconv.Itoa(a.Total), value}
}
