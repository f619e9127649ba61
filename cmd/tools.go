package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"socdash/mcp"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the chatbot query tools",
		Long:  "Print the tool manifest the chatbot uses to query ClickHouse. No connection is needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := mcp.Tools()
			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), tools)
			}
			return renderToolsTable(cmd.OutOrStdout(), tools)
		},
	}
}

type toolSchema struct {
	Properties map[string]struct {
		Type    string      `json:"type"`
		Default interface{} `json:"default"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// renderToolsTable prints each tool with its parameters
func renderToolsTable(w io.Writer, tools []mcp.Tool) error {
	fmt.Fprintln(w, headerColor.Sprint("TOOLS"))
	fmt.Fprintln(w, strings.Repeat("=", 80))

	for _, tool := range tools {
		var schema toolSchema
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}

		fmt.Fprintln(w, successColor.Sprint(tool.Name))
		fmt.Fprintf(w, "  %s\n", tool.Description)

		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		required := make(map[string]bool, len(schema.Required))
		for _, name := range schema.Required {
			required[name] = true
		}

		for _, name := range names {
			prop := schema.Properties[name]
			line := fmt.Sprintf("    --%s (%s)", name, prop.Type)
			if required[name] {
				line += " required"
			} else if prop.Default != nil {
				line += fmt.Sprintf(" default %v", prop.Default)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 80))
	return nil
}
