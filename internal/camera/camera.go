package camera

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	TypeSnapshot = "snapshot"
	TypeStill    = "still"
)

// Config selects and configures the camera backend.
type Config struct {
	Type string

	EnvironmentURL string
	UserURL        string

	EnvironmentImages []string
	UserImages        []string

	Interval time.Duration
	Timeout  time.Duration
}

// New builds the Devices backend named by cfg.Type.
func New(cfg Config, log zerolog.Logger) (Devices, error) {
	switch cfg.Type {
	case TypeSnapshot:
		urls := map[FacingMode]string{
			FacingEnvironment: cfg.EnvironmentURL,
			FacingUser:        cfg.UserURL,
		}
		if cfg.EnvironmentURL == "" && cfg.UserURL == "" {
			return nil, fmt.Errorf("snapshot camera needs at least one url")
		}
		client := &http.Client{Timeout: cfg.Timeout}
		return NewSnapshotDevices(client, urls, cfg.Interval, log.With().Str("camera", TypeSnapshot).Logger()), nil
	case TypeStill:
		return LoadStillDevices(map[FacingMode][]string{
			FacingEnvironment: cfg.EnvironmentImages,
			FacingUser:        cfg.UserImages,
		}, cfg.Interval)
	default:
		return nil, fmt.Errorf("unknown camera type %q", cfg.Type)
	}
}
