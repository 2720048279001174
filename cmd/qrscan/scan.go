package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"qrscan-service/internal/camera"
	"qrscan-service/internal/domain/scan"
	"qrscan-service/internal/scanner"
)

var (
	scanImages      []string
	scanSnapshotURL string
	scanFacing      string
	scanTimeout     time.Duration
)

var errScanTimeout = errors.New("no QR code decoded before timeout")

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan once and print the decoded payload",
	Long: `Starts a single capture session and prints the first decoded payload with
its validation. Frames come from --image files, a --snapshot-url, or the
configured camera.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanImages, "image", nil, "Image files to use as camera frames")
	scanCmd.Flags().StringVar(&scanSnapshotURL, "snapshot-url", "", "HTTP endpoint returning one JPEG or PNG frame per request")
	scanCmd.Flags().StringVar(&scanFacing, "facing", string(camera.FacingEnvironment), "Camera facing mode (environment, user)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 30*time.Second, "Give up after this long")
}

func scanDevices(facing camera.FacingMode) (camera.Devices, error) {
	interval := cfg.Camera.Interval
	switch {
	case len(scanImages) > 0:
		return camera.LoadStillDevices(map[camera.FacingMode][]string{facing: scanImages}, interval)
	case scanSnapshotURL != "":
		client := &http.Client{Timeout: cfg.Camera.Timeout}
		return camera.NewSnapshotDevices(client, map[camera.FacingMode]string{facing: scanSnapshotURL}, interval, log), nil
	default:
		return camera.New(cfg.CameraDevices(), log)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	facing, err := camera.ParseFacingMode(scanFacing)
	if err != nil {
		return err
	}
	devices, err := scanDevices(facing)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
	defer cancel()

	// The camera is local to this process.
	sc := scanner.New(scanner.Options{
		Devices:       devices,
		Surface:       camera.NewSurface(log),
		Origin:        &url.URL{Scheme: "http", Host: "localhost"},
		Mobile:        true,
		Facing:        facing,
		Ticker:        scanner.FrameTicker(cfg.Scanner.FPS),
		DefaultWidth:  cfg.Scanner.DefaultWidth,
		DefaultHeight: cfg.Scanner.DefaultHeight,
		Log:           log,
	})
	defer sc.Close()

	states := sc.Watch(ctx)
	if err := sc.Start(ctx, &facing); err != nil {
		return err
	}

	for st := range states {
		if st.Decoded == "" {
			continue
		}
		printResult(cmd, scan.Evaluate(st.Decoded))
		return nil
	}
	return fmt.Errorf("%w (%s)", errScanTimeout, scanTimeout)
}

func printResult(cmd *cobra.Command, res scan.Result) {
	out := cmd.OutOrStdout()
	if !res.Valid {
		fmt.Fprintf(out, "%s\tinvalid\n", res.Raw)
		return
	}
	id := res.UID
	fmt.Fprintf(out, "%s\tvalid\tyear=%s zone=%s vendor=%s batch=%s serial=%s\n",
		res.Raw, id.Year, id.Zone, id.Vendor, id.Batch, id.Serial)
}
