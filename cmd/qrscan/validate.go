package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qrscan-service/internal/domain/scan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <uid>...",
	Short: "Validate fitting UIDs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invalid := 0
		for _, raw := range args {
			res := scan.Evaluate(raw)
			if !res.Valid {
				invalid++
			}
			printResult(cmd, res)
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d uids invalid", invalid, len(args))
		}
		return nil
	},
}
