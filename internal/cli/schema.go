package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/schema"
)

// FieldInfo is one column in schema output.
type FieldInfo struct {
	Display  string `json:"display"`
	Storage  string `json:"storage"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// KindInfo is one kind in schema output.
type KindInfo struct {
	Kind   string      `json:"kind"`
	Title  string      `json:"title"`
	Fields []FieldInfo `json:"fields"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [schema-dir]",
		Short: "Print the field schemas",
		Long: `Compile the CUE field schemas and print every kind's columns.

Without a directory the built-in shop and one-room schemas are used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSchema(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	if dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			msg := fmt.Sprintf("schema directory not found: %s", dir)
			_ = f.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}

	reg, err := schema.Load(dir)
	if err != nil {
		_ = f.Error(ErrCodeSchema, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	kinds := describeRegistry(reg)
	if f.JSON() {
		return f.Success(kinds)
	}
	fmt.Fprint(f.Writer, formatKinds(kinds))
	return nil
}

func describeRegistry(reg *schema.Registry) []KindInfo {
	var out []KindInfo
	for _, kind := range reg.Kinds() {
		sch, _ := reg.Schema(kind)
		info := KindInfo{Kind: string(kind), Title: sch.Title}
		for _, fld := range sch.Fields {
			info.Fields = append(info.Fields, FieldInfo{
				Display:  fld.DisplayKey,
				Storage:  fld.StorageKey,
				Type:     string(fld.Type),
				Required: fld.Required,
			})
		}
		out = append(out, info)
	}
	return out
}

func formatKinds(kinds []KindInfo) string {
	var b strings.Builder
	for i, k := range kinds {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s)\n", k.Kind, k.Title)
		for _, fld := range k.Fields {
			req := ""
			if fld.Required {
				req = " required"
			}
			fmt.Fprintf(&b, "  %-16s %-16s %s%s\n", fld.Storage, fld.Display, fld.Type, req)
		}
	}
	return b.String()
}
