package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/floats"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/robot"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

// PlanFlags override the replay settings from the config file.
type PlanFlags struct {
	Tol       float64 `long:"tol" description:"Reconstruction tolerance per joint in radians"`
	MaxChange float64 `long:"max-change" description:"Largest joint change between waypoints in radians"`
	MinSteps  int     `long:"min-steps" description:"Initial number of evenly spaced waypoints per segment"`
}

func (f PlanFlags) apply(r robot.ReplayConfig) robot.ReplayConfig {
	if f.Tol > 0 {
		r.Tol = f.Tol
	}
	if f.MaxChange > 0 {
		r.MaxChange = f.MaxChange
	}
	if f.MinSteps > 0 {
		r.MinSteps = f.MinSteps
	}
	return r
}

// demoArg is the positional demo reference shared by several commands.
type demoArg struct {
	Demo string `positional-arg-name:"demo" description:"Demo name, ID or JSON file"`
}

type InspectCommand struct {
	PlanFlags
	Waypoints bool    `long:"waypoints" short:"w" description:"Also list the waypoints of every segment"`
	Args      demoArg `positional-args:"yes" required:"yes"`
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableOpenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableClosedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
)

func (c *InspectCommand) Execute(args []string) error {
	rec, err := loadRecording(c.Args.Demo)
	if err != nil {
		return err
	}
	settings := c.apply(replayConfig())

	p, err := plan.Build(context.Background(), rec, planOptions(settings))
	if err != nil {
		return fmt.Errorf("plan %q: %w", rec.Name, err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Demo %q", rec.Name)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d steps at %d Hz (%.1fs), tol %.3f, max change %.3f",
		rec.Len(), rec.Hz, rec.Duration(), settings.Tol, settings.MaxChange)))
	fmt.Println()
	fmt.Println(segmentTable(p, rec).Render())
	fmt.Printf("%d segments, %d waypoints from %d steps (%.1f%%)\n",
		len(p.Steps), p.Waypoints(), rec.Len(), 100*float64(p.Waypoints())/float64(rec.Len()))

	if c.Waypoints {
		for i, step := range p.Steps {
			fmt.Println()
			fmt.Println(subHeaderStyle.Render(fmt.Sprintf("Segment %d", i+1)))
			fmt.Println(waypointTable(step).Render())
		}
	}
	return nil
}

func segmentTable(p *plan.Plan, rec *trajectory.Recording) *table.Table {
	rows := make([][]string, 0, len(p.Steps))
	for i, step := range p.Steps {
		left, right := step.Deviation(rec)
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d-%d", step.Start, step.End-1),
			step.LeftGrip.String(),
			step.RightGrip.String(),
			fmt.Sprintf("%d", step.End-step.Start),
			fmt.Sprintf("%d", len(step.Times)),
			fmt.Sprintf("%.4f", max(floats.Max(left), floats.Max(right))),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Range", "Left grip", "Right grip", "Steps", "Waypoints", "Max dev").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if (col == 2 || col == 3) && row >= 0 && row < len(rows) {
				if rows[row][col] == "open" {
					return tableOpenStyle
				}
				return tableClosedStyle
			}
			return tableCellStyle
		})
}

func waypointTable(step plan.Step) *table.Table {
	rows := make([][]string, len(step.Times))
	for i, t := range step.Times {
		rows[i] = []string{
			fmt.Sprintf("%.2f", t),
			formatJoints(step.Left[i]),
			formatJoints(step.Right[i]),
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Time", "Left joints", "Right joints").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func formatJoints(joints []float64) string {
	parts := make([]string, len(joints))
	for i, j := range joints {
		parts[i] = fmt.Sprintf("%+.3f", j)
	}
	return strings.Join(parts, " ")
}
