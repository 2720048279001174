package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"qrscan-service/internal/domain/uid"
	"qrscan-service/internal/qr"
)

var (
	labelOut  string
	labelSize int
)

var labelCmd = &cobra.Command{
	Use:   "label <uid>",
	Short: "Render a fitting UID as a QR code PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runLabel,
}

func init() {
	labelCmd.Flags().StringVarP(&labelOut, "out", "o", "", "Output PNG path (required)")
	labelCmd.Flags().IntVar(&labelSize, "size", 512, "Image width and height in pixels")
	_ = labelCmd.MarkFlagRequired("out")
}

func runLabel(cmd *cobra.Command, args []string) error {
	id, ok := uid.Validate(args[0])
	if !ok {
		return fmt.Errorf("invalid uid %q", args[0])
	}

	img, err := qr.Encode(id.String(), labelSize)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	f, err := os.Create(labelOut)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", labelOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Info().Str("uid", id.String()).Str("path", labelOut).Msg("label written")
	fmt.Fprintln(cmd.OutOrStdout(), labelOut)
	return nil
}
