// Command ultratable inspects and edits workspace files: typed tables whose
// formula, rollup, lookup and count columns are computed on the fly.
package main

import (
	"github.com/spf13/cobra"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the registered column types",
		Args:  cobra.NoArgs,
		Run:   showTypes}
	cmd.Flags().String("category", "", "only types of this category")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "eval workspace table",
		Short: "Show every cell of a table, formatted and computed",
		Args:  cobra.ExactArgs(2),
		Run:   evalTable}
	cmd.Flags().StringArray("row", nil, "row id (default: every row)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "export workspace table",
		Short: "Export a table as CSV",
		Args:  cobra.ExactArgs(2),
		Run:   exportTable}
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("with-id", false, "include the row id column")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "import workspace table file",
		Short: "Append the rows of a CSV file to a table",
		Args:  cobra.ExactArgs(3),
		Run:   importTable}
	cmd.Flags().String("actor", "", "user recorded as the rows' creator")
	cmd.Flags().Bool("dry-run", false, "do not write the workspace file")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "summary workspace table",
		Short: "Aggregate the columns of a table",
		Args:  cobra.ExactArgs(2),
		Run:   summarizeTable}
	cmd.Flags().StringArray("agg", nil, "column=kind, e.g. price=sum (default: every aggregatable column)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "query workspace table",
		Short: "Filter, order and page the rows of a table",
		Args:  cobra.ExactArgs(2),
		Run:   queryTable}
	cmd.Flags().String("filter", "", `filter expression, e.g. 'status = "done" AND price > 10.0'`)
	cmd.Flags().String("order-by", "", "ordering, e.g. 'price desc, name'")
	cmd.Flags().Int("offset", 0, "rows to skip")
	cmd.Flags().Int("limit", 0, "maximum rows (default: all)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "push workspace table",
		Short: "Save a table to the configured SQL row source",
		Args:  cobra.ExactArgs(2),
		Run:   pushTable}
	cmd.Flags().String("sql-table", "", "SQL table name (default: table id)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "pull workspace table",
		Short: "Replace a table's rows with those of the SQL row source",
		Args:  cobra.ExactArgs(2),
		Run:   pullTable}
	cmd.Flags().String("sql-table", "", "SQL table name (default: table id)")
	root.AddCommand(cmd)
}

func main() {
	var root = &cobra.Command{Use: "ultratable"}
	root.PersistentFlags().String("config", "", "engine config file, .yaml or .json")
	root.PersistentFlags().String("log-level", "warn", "engine log level, empty to use the config")
	root.PersistentFlags().BoolP("quiet", "q", false, "silence status output")
	root.PersistentFlags().String("format", "pretty", "format results, 'json' or 'pretty'")
	addCommands(root)
	root.Execute()
}
