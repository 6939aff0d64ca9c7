package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/wasmship/wasmship/protocol"
)

// Output formats accepted by inspect.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// lastColumn is the RESULTS column, rendered without trailing padding.
const lastColumn = 2

var (
	headerStyle = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// moduleExports is the document written by the json and yaml formats.
type moduleExports struct {
	Module  string            `json:"module" yaml:"module"`
	Exports []protocol.Export `json:"exports" yaml:"exports"`
}

func renderExports(w io.Writer, ref protocol.Reference, exports []protocol.Export, format string) error {
	sorted := append([]protocol.Export(nil), exports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	doc := moduleExports{Module: ref.String(), Exports: sorted}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		_, err := io.WriteString(w, exportTable(sorted))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func exportTable(exports []protocol.Export) string {
	rows := make([][]string, 0, len(exports))
	for _, e := range exports {
		rows = append(rows, []string{e.Name, typeList(e.Params), typeList(e.Results)})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers("FUNCTION", "PARAMS", "RESULTS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cellStyle
			if row == table.HeaderRow {
				style = headerStyle
			}
			if col == lastColumn {
				return style.UnsetPaddingRight()
			}
			return style
		})
	return t.String() + "\n"
}

func typeList(types []string) string {
	if len(types) == 0 {
		return "-"
	}
	return strings.Join(types, ", ")
}
