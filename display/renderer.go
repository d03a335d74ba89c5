// Package display renders session output for the interactive CLI.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/yourusername/queryweaver/models"
)

// Renderer prints sessions and results with terminal styling
type Renderer struct {
	headerColor  *color.Color
	successColor *color.Color
	warnColor    *color.Color
	errorColor   *color.Color
}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{
		headerColor:  color.New(color.FgCyan, color.Bold),
		successColor: color.New(color.FgGreen),
		warnColor:    color.New(color.FgYellow),
		errorColor:   color.New(color.FgRed),
	}
}

// PlanProgress returns a progress bar for plan execution
func (r *Renderer) PlanProgress(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("executing plan"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

// ProgressCallback returns a callback suitable for the invoker's Progress
// hook. The bar is created lazily because the plan size is only known once
// execution starts, and reset after each completed plan.
func (r *Renderer) ProgressCallback() func(completed, total int) {
	var bar *progressbar.ProgressBar
	return func(completed, total int) {
		if bar == nil {
			bar = r.PlanProgress(total)
		}
		_ = bar.Set(completed)
		if completed >= total {
			bar = nil
		}
	}
}

// ShowSession prints the full record of a terminated session
func (r *Renderer) ShowSession(session *models.Session) {
	r.headerColor.Printf("\n📋 Session %s\n", session.SessionID)
	fmt.Printf("   Question: %s\n", session.UserQuestion)
	fmt.Printf("   State: %s  Duration: %.1fs\n", session.State, session.Duration().Seconds())

	if len(session.GeneratedQueries) > 0 {
		r.headerColor.Println("\n🔍 Generated queries:")
		for _, q := range session.GeneratedQueries {
			marker := " "
			if q.IsFinal {
				marker = "★"
			}
			fmt.Printf(" %s %s\n", marker, q.QueryText)
			if q.Description != "" {
				fmt.Printf("   %s\n", q.Description)
			}
		}
	}

	if len(session.ExecutedTools) > 0 {
		r.headerColor.Printf("\n🔧 Tool calls (%d):\n", len(session.ExecutedTools))
		for _, t := range session.ExecutedTools {
			r.showToolEntry(&t)
		}
	}

	if last := lastResult(session); last != nil {
		r.headerColor.Println("\n📊 Last result:")
		r.ShowResult(last)
	}

	if len(session.Insights) > 0 {
		r.headerColor.Println("\n💡 Insights:")
		for _, insight := range session.Insights {
			fmt.Printf(" - %s\n", insight)
		}
	}

	if session.FinalAnalysis != "" {
		r.headerColor.Println("\n✅ Analysis:")
		fmt.Println(indent(session.FinalAnalysis, "   "))
	}
	if session.FinalSQL != "" {
		r.successColor.Printf("\nFinal query: %s\n", session.FinalSQL)
	}
	if session.IsLargeResult {
		how := "sampled"
		if session.SummaryUsed {
			how = "summarized"
		}
		r.warnColor.Printf("\n⚠️ Last result was large (%d rows) and was %s\n",
			session.RowCount, how)
	}
}

// showToolEntry prints one executed tool log entry
func (r *Renderer) showToolEntry(entry *models.ExecutedTool) {
	fmt.Printf(" - %s", entry.ToolName)
	if result := entry.ResultSummary; result != nil {
		if result.Error != "" {
			r.errorColor.Printf("  ❌ %s", result.Error)
		} else {
			fmt.Printf("  (%d rows", result.RowCount)
			if result.SampleUsed {
				fmt.Printf(", sampled")
			}
			if result.SummaryUsed {
				fmt.Printf(", summarized")
			}
			fmt.Printf(")")
		}
	}
	fmt.Println()
}

// ShowResult prints a governed result as a table, or its column summary
// when the rows were summarized away
func (r *Renderer) ShowResult(result *models.GovernedResult) {
	if result.Error != "" {
		r.errorColor.Printf("❌ %s\n", result.Error)
		return
	}

	if result.SummaryUsed {
		r.warnColor.Printf("Summary of %d rows:\n", result.RowCount)
		for _, col := range result.Summary {
			fmt.Printf("  %-20s distinct=%-8d nulls=%-6d min=%v max=%v\n",
				col.Name, col.DistinctCount, col.NullCount, col.Min, col.Max)
		}
		return
	}

	fmt.Println(strings.Join(result.Columns, " | "))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	if result.SampleUsed {
		r.warnColor.Printf("(showing a sample of %d of %d rows)\n",
			len(result.Rows), result.RowCount)
	}
}

// lastResult returns the most recent successful tool result, if any
func lastResult(session *models.Session) *models.GovernedResult {
	for i := len(session.ExecutedTools) - 1; i >= 0; i-- {
		result := session.ExecutedTools[i].ResultSummary
		if result != nil && result.Error == "" {
			return result
		}
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
