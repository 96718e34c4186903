package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// labelsCmd prints the invoice type label table.
var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Show how invoice types are labelled in the Debtor Reference",
	Long: `Show the invoice type codes the reformatter recognizes and the label each
one gets in the Debtor Reference column. Codes are matched exactly; any
other code rejects the row.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "INVOICE TYPE\tLABEL\tEXAMPLE")
		for _, code := range record.Codes() {
			label, err := record.Label(code)
			if err != nil {
				return err
			}
			example, err := record.DebtorReference("C100", code)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", code, label, example)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}
