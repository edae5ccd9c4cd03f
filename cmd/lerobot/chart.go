package main

import (
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/demoreplay/pkg/robot"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Motor colors - distinct colors for each motor
var motorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// motorChart streams normalized motor positions of one arm.
type motorChart struct {
	chart         *streamlinechart.Model
	width, height int // terminal size
	last          map[robot.MotorName]float64
	logs          []string
}

func newMotorChart() *motorChart {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)
	for _, name := range robot.AllMotors() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}
	return &motorChart{chart: &chart}
}

// resize fits the chart to a terminal of w by h cells.
func (c *motorChart) resize(w, h int) {
	c.width, c.height = w, h
	c.chart.Resize(c.size())
}

func (c *motorChart) size() (width, height int) {
	if c.width == 0 || c.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(c.width-borderSize-2, 40)
	height = max(c.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

// push adds a sample. The chart freezes while positions do not change.
func (c *motorChart) push(positions map[robot.MotorName]float64) {
	if positions == nil || !c.moved(positions) {
		return
	}
	for name, pos := range positions {
		c.chart.PushDataSet(string(name), pos)
	}
	c.chart.DrawAll()
	c.last = positions
}

func (c *motorChart) moved(positions map[robot.MotorName]float64) bool {
	if c.last == nil {
		return true
	}
	for name, pos := range positions {
		if last, ok := c.last[name]; !ok || pos != last {
			return true
		}
	}
	return false
}

func (c *motorChart) addLog(msg string) {
	c.logs = append(c.logs, msg)
	if len(c.logs) > maxLogs {
		c.logs = c.logs[len(c.logs)-maxLogs:]
	}
}

// render lays out header, chart, legend and log box.
func (c *motorChart) render(header, hint string) string {
	var sb strings.Builder

	sb.WriteString(header)
	sb.WriteString("\n\n")
	sb.WriteString(chartStyle.Render(c.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(c.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	logLines := statusStyle.Render(hint)
	if len(c.logs) > 0 {
		logLines = strings.Join(c.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllMotors() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ")
}
