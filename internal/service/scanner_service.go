package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"qrscan-service/internal/camera"
	"qrscan-service/internal/config"
	"qrscan-service/internal/domain/scan"
	"qrscan-service/internal/repository"
	"qrscan-service/internal/scanner"
	"qrscan-service/internal/utils"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrTooManyScanners = errors.New("too many active scanners")
)

// ScannerService keeps one scanner per presentation client, in memory.
type ScannerService struct {
	devices      camera.Devices
	cfg          config.ScannerConfig
	publicOrigin *url.URL
	newSurface   func(log zerolog.Logger) scanner.Surface
	repo         *repository.ScannerRepository
	log          zerolog.Logger
}

// NewScannerService wires scanners to devices. publicOrigin, when non-nil,
// replaces the origin reported by clients.
func NewScannerService(devices camera.Devices, cfg config.ScannerConfig, publicOrigin *url.URL, log zerolog.Logger) *ScannerService {
	return &ScannerService{
		devices:      devices,
		cfg:          cfg,
		publicOrigin: publicOrigin,
		newSurface: func(log zerolog.Logger) scanner.Surface {
			return camera.NewSurface(log)
		},
		repo: repository.NewScannerRepository(cfg.MaxSessions),
		log:  log,
	}
}

// CreateScanner registers a scanner for a client. Mobile detection runs
// here, once, from the client's user agent.
func (s *ScannerService) CreateScanner(ctx context.Context, client scan.ClientInfo) (scanner.State, error) {
	origin := client.Origin
	if s.publicOrigin != nil {
		origin = s.publicOrigin
	}
	if origin == nil {
		return scanner.State{}, fmt.Errorf("%w: client origin is required", ErrInvalidInput)
	}

	mobile := utils.IsMobileUserAgent(client.UserAgent, client.CHMobile)
	id := uuid.NewString()
	log := s.log.With().Str("scanner_id", id).Logger()

	sc := scanner.New(scanner.Options{
		ID:            id,
		Devices:       s.devices,
		Surface:       s.newSurface(log),
		Origin:        origin,
		Mobile:        mobile,
		Facing:        camera.FacingMode(s.cfg.DefaultFacing),
		Ticker:        scanner.FrameTicker(s.cfg.FPS),
		DefaultWidth:  s.cfg.DefaultWidth,
		DefaultHeight: s.cfg.DefaultHeight,
		Log:           s.log,
	})

	if err := s.repo.Add(sc); err != nil {
		s.log.Warn().Int("max_sessions", s.repo.Limit()).Msg("scanner limit reached")
		return scanner.State{}, ErrTooManyScanners
	}

	log.Info().
		Bool("mobile", mobile).
		Str("origin", origin.String()).
		Bool("secure_origin", utils.IsSecureOrigin(origin)).
		Msg("scanner created")

	return sc.State(), nil
}

func (s *ScannerService) get(id string) (*scanner.Scanner, error) {
	sc, err := s.repo.Get(id)
	if errors.Is(err, repository.ErrScannerNotFound) {
		return nil, fmt.Errorf("%w: scanner %s", ErrNotFound, id)
	}
	return sc, err
}

// Start begins a scan. facing may be empty to keep the selected mode.
// Capture failures come back alongside the resulting state.
func (s *ScannerService) Start(ctx context.Context, id, facing string) (scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return scanner.State{}, err
	}

	var want *camera.FacingMode
	if facing = strings.TrimSpace(facing); facing != "" {
		f, err := camera.ParseFacingMode(facing)
		if err != nil {
			return sc.State(), fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		want = &f
	}

	err = sc.Start(ctx, want)
	return sc.State(), closedAsNotFound(id, err)
}

// closedAsNotFound reports a scanner closed mid-request as gone.
func closedAsNotFound(id string, err error) error {
	if errors.Is(err, scanner.ErrClosed) {
		return fmt.Errorf("%w: scanner %s", ErrNotFound, id)
	}
	return err
}

func (s *ScannerService) Stop(ctx context.Context, id string) (scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return scanner.State{}, err
	}
	sc.Stop()
	return sc.State(), nil
}

func (s *ScannerService) SwitchCamera(ctx context.Context, id string) (scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return scanner.State{}, err
	}
	err = sc.SwitchCamera(ctx)
	return sc.State(), closedAsNotFound(id, err)
}

func (s *ScannerService) Rescan(ctx context.Context, id string) (scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return scanner.State{}, err
	}
	err = sc.Rescan(ctx)
	return sc.State(), closedAsNotFound(id, err)
}

func (s *ScannerService) State(ctx context.Context, id string) (scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return scanner.State{}, err
	}
	return sc.State(), nil
}

// Watch streams state changes of one scanner until ctx is done.
func (s *ScannerService) Watch(ctx context.Context, id string) (<-chan scanner.State, error) {
	sc, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sc.Watch(ctx), nil
}

// Result validates the scanner's last decoded payload.
func (s *ScannerService) Result(ctx context.Context, id string) (scan.Result, error) {
	sc, err := s.get(id)
	if err != nil {
		return scan.Result{}, err
	}
	st := sc.State()
	if st.Decoded == "" {
		return scan.Result{}, fmt.Errorf("%w: nothing decoded yet", ErrNotFound)
	}

	res := scan.Evaluate(st.Decoded)
	if !res.Valid {
		s.log.Debug().
			Str("scanner_id", id).
			Str("raw", st.Decoded).
			Msg("decoded payload is not a fitting uid")
	}
	return res, nil
}

// Close stops a scanner and forgets it, as when its UI goes away.
func (s *ScannerService) Close(ctx context.Context, id string) error {
	sc, err := s.repo.Remove(id)
	if errors.Is(err, repository.ErrScannerNotFound) {
		return fmt.Errorf("%w: scanner %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	sc.Close()
	s.log.Info().Str("scanner_id", id).Msg("scanner closed")
	return nil
}

// Shutdown stops every scanner and releases every camera.
func (s *ScannerService) Shutdown(ctx context.Context) error {
	all := s.repo.Drain()

	var g errgroup.Group
	for _, sc := range all {
		g.Go(func() error {
			sc.Close()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		s.log.Warn().Int("scanners", len(all)).Msg("scanner shutdown timed out")
		return ctx.Err()
	}
	s.log.Info().Int("scanners", len(all)).Msg("all scanners stopped")
	return nil
}

// ValidateUID checks a typed or pasted identifier.
func (s *ScannerService) ValidateUID(raw string) (scan.Result, error) {
	if strings.TrimSpace(raw) == "" {
		return scan.Result{}, fmt.Errorf("%w: uid is required", ErrInvalidInput)
	}
	return scan.Evaluate(raw), nil
}

// Count reports the number of registered scanners.
func (s *ScannerService) Count() int {
	return s.repo.Count()
}
