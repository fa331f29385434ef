package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/ultratable/internal/table"
	"github.com/rzpsarthak13/ultratable/pkg/ultratable"
)

// Action is the state used while processing one command.
type Action struct {
	cmd    *cobra.Command
	quiet  bool
	out    io.Writer
	engine *ultratable.Engine
	start  time.Time
}

func newAction(cmd *cobra.Command) *Action {
	a := &Action{cmd: cmd, out: cmd.OutOrStdout(), start: time.Now()}
	a.quiet = a.getBool("quiet")
	return a
}

func (a *Action) Context() context.Context {
	if ctx := a.cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *Action) getBool(name string) bool {
	result, _ := a.cmd.Flags().GetBool(name)
	return result
}

func (a *Action) getInt(name string) int {
	result, _ := a.cmd.Flags().GetInt(name)
	return result
}

func (a *Action) getString(name string) string {
	result, _ := a.cmd.Flags().GetString(name)
	return result
}

func (a *Action) getStringArray(name string) []string {
	result, _ := a.cmd.Flags().GetStringArray(name)
	return result
}

// Engine opens the engine from --config on first use.
func (a *Action) Engine() (*ultratable.Engine, error) {
	if a.engine == nil {
		var opts []ultratable.Option
		if level := a.getString("log-level"); level != "" {
			opts = append(opts, ultratable.WithLogLevel(level))
		}
		e, err := ultratable.Open(a.getString("config"), opts...)
		if err != nil {
			return nil, err
		}
		a.engine = e
	}
	return a.engine, nil
}

// Table loads the workspace file and returns one of its tables.
func (a *Action) Table(path, tableID string) (*table.Table, error) {
	e, err := a.Engine()
	if err != nil {
		return nil, err
	}
	f, err := readWorkspaceFile(path)
	if err != nil {
		return nil, err
	}
	if err := loadWorkspace(a.Context(), e.Workspace(), f); err != nil {
		return nil, err
	}
	return e.Workspace().Table(tableID)
}

// Start shows the action banner.
func (a *Action) Start(format string, args ...any) *Action {
	if !a.quiet {
		fmt.Fprintf(os.Stderr, format+" .. ", args...)
	}
	return a
}

// Exit updates the banner, shows the result and exits.
func (a *Action) Exit(result any, err error) {
	delta := time.Since(a.start).Seconds()
	if a.engine != nil {
		a.engine.Close()
	}
	if err != nil {
		if !a.quiet {
			fmt.Fprintf(os.Stderr, "(%.1fs)\n", delta)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimRight(err.Error(), "\r\n"))
		os.Exit(1)
	}
	if !a.quiet {
		fmt.Fprintf(os.Stderr, "Ok (%.1fs)\n", delta)
	}
	a.show(result)
	os.Exit(0)
}

// showable results print themselves in the pretty format.
type showable interface {
	Show(w io.Writer)
}

func (a *Action) show(v any) {
	if v == nil {
		return
	}
	if s, ok := v.(showable); ok && a.getString("format") != "json" {
		s.Show(a.out)
		return
	}
	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	e.Encode(v)
}

// sheet is a grid of formatted cells.
type sheet struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total,omitempty"`
}

func (s *sheet) Show(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(s.Columns, "\t"))
	for _, r := range s.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
	if s.Total > len(s.Rows) {
		fmt.Fprintf(w, "(%d of %d rows)\n", len(s.Rows), s.Total)
	}
}
