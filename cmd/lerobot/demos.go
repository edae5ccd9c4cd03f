package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/demoreplay/pkg/demostore"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

type ListCommand struct{}

func (c *ListCommand) Execute(args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	demos, err := store.List()
	if err != nil {
		return err
	}
	if len(demos) == 0 {
		fmt.Println(dimStyle.Render("No demonstrations recorded yet."))
		return nil
	}

	rows := make([][]string, len(demos))
	for i, d := range demos {
		rows[i] = []string{
			d.Name,
			fmt.Sprintf("%d", d.Steps),
			fmt.Sprintf("%d", d.Hz),
			fmt.Sprintf("%.1fs", float64(d.Steps)/float64(max(d.Hz, 1))),
			d.CreatedAt.Local().Format(time.DateTime),
			d.ID,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Name", "Steps", "Hz", "Length", "Recorded", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 5:
				return dimStyle.Padding(0, 1)
			default:
				return tableCellStyle
			}
		})
	fmt.Println(t.Render())
	return nil
}

type ExportCommand struct {
	Args struct {
		Demo string `positional-arg-name:"demo" description:"Demo name or ID"`
		File string `positional-arg-name:"file" description:"Output JSON file (default <name>.json)"`
	} `positional-args:"yes" required:"1"`
}

func (c *ExportCommand) Execute(args []string) error {
	rec, err := loadRecording(c.Args.Demo)
	if err != nil {
		return err
	}
	path := c.Args.File
	if path == "" {
		path = rec.Name + ".json"
	}
	if err := rec.Save(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("exported demonstration", slog.String("name", rec.Name), slog.String("path", path))
	fmt.Println(successStyle.Render(fmt.Sprintf("Wrote %q to %s", rec.Name, path)))
	return nil
}

type ImportCommand struct {
	Name string `long:"name" short:"n" description:"Store under this name instead of the one in the file"`
	Args struct {
		File string `positional-arg-name:"file" description:"Recording JSON file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ImportCommand) Execute(args []string) error {
	rec, err := trajectory.Load(c.Args.File)
	if err != nil {
		return err
	}
	if c.Name != "" {
		rec.Name = c.Name
	}
	if rec.Name == "" {
		return errors.New("recording has no name, pass --name")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	demo, err := store.Put(rec)
	if err != nil {
		return err
	}
	log.Info("imported demonstration", slog.String("name", demo.Name), slog.String("id", demo.ID))
	fmt.Println(successStyle.Render(fmt.Sprintf("Imported %q: %d steps", demo.Name, demo.Steps)))
	return nil
}

type DeleteCommand struct {
	Args struct {
		Demo string `positional-arg-name:"demo" description:"Demo name or ID"`
	} `positional-args:"yes" required:"yes"`
}

func (c *DeleteCommand) Execute(args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	demo, err := store.GetByName(c.Args.Demo)
	if errors.Is(err, demostore.ErrNotFound) {
		demo, err = store.Get(c.Args.Demo)
	}
	if err != nil {
		return fmt.Errorf("demo %q: %w", c.Args.Demo, err)
	}
	if err := store.Delete(demo.ID); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Deleted %q", demo.Name)))
	return nil
}
