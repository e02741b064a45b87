package trainer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = "#705090"
)

func formatAccuracy(acc float64) string {
	if math.IsNaN(acc) {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*acc)
}

// Summary renders one table row per epoch of the run.
func Summary(r *Result) string {
	t := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		Headers("Epoch", "Examples", "Loss", "Validation", "Learning rate", "Checkpoint").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 5:
				return normalStyle
			}
			return rightAlignedStyle
		})
	for _, e := range r.Epochs {
		t.Row(
			strconv.Itoa(e.Epoch),
			humanize.Comma(int64(e.Examples)),
			fmt.Sprintf("%.6f", e.Loss),
			formatAccuracy(e.Accuracy()),
			strconv.FormatFloat(e.LearningRate, 'g', 3, 64),
			e.Checkpoint,
		)
	}

	footer := fmt.Sprintf("%s training / %s validation examples, %d epochs",
		humanize.Comma(int64(r.TrainSize)), humanize.Comma(int64(r.ValidationSize)), len(r.Epochs))
	if r.Stopped {
		footer += " (stopped early)"
	}
	if r.RunID != "" {
		footer += ", run " + r.RunID
	}
	return t.String() + "\n" + normalStyle.Render(footer)
}
