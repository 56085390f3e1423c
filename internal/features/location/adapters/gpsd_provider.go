package adapters

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"

	"delivery-verification/internal/core/config"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/location/ports"
	"delivery-verification/internal/features/verification/domain"

	"go.uber.org/zap"
)

// watchCommand subscribes to gpsd's JSON report stream.
const watchCommand = `?WATCH={"enable":true,"json":true}` + "\n"

// GPSDProvider implements ports.Provider by streaming position reports from
// a local gpsd daemon over its JSON wire protocol.
type GPSDProvider struct {
	// address is the host:port of the gpsd daemon.
	address string
	// fixTimeout bounds how long CurrentFix waits for a usable report.
	fixTimeout time.Duration
	logger     *zap.Logger
}

// NewGPSDProvider creates a new GPSDProvider.
func NewGPSDProvider(cfg config.LocationConfig) *GPSDProvider {
	return &GPSDProvider{
		address:    cfg.GPSDAddress,
		fixTimeout: cfg.FixTimeout,
		logger:     logger.Named("gpsd"),
	}
}

// CurrentFix connects to gpsd and returns the first report carrying a 2D or
// better fix. Reports without a position solution are skipped.
func (p *GPSDProvider) CurrentFix(ctx context.Context) (*domain.Location, error) {
	if p.address == "" {
		return nil, ports.ErrSourceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, p.fixTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrSourceUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrSourceUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			p.logger.Debug("Skipping unparseable gpsd report", zap.Error(err))
			continue
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}

		fix := &domain.Location{
			Latitude:       report.Lat,
			Longitude:      report.Lon,
			AccuracyMeters: report.accuracy(),
			Timestamp:      report.timestamp(),
		}
		p.logger.Debug("GPS fix acquired",
			zap.Float64("latitude", fix.Latitude),
			zap.Float64("longitude", fix.Longitude),
			zap.Float64("accuracy_m", fix.AccuracyMeters),
		)
		return fix, nil
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ports.ErrNoFix
		}
		return nil, fmt.Errorf("%w: %s", ports.ErrSourceUnavailable, err)
	}
	return nil, ports.ErrNoFix
}

// Watch connects to gpsd and streams fixes until the context is cancelled.
// The returned channel is closed when the stream ends.
func (p *GPSDProvider) Watch(ctx context.Context) (<-chan domain.Location, error) {
	if p.address == "" {
		return nil, ports.ErrSourceUnavailable
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrSourceUnavailable, err)
	}

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ports.ErrSourceUnavailable, err)
	}

	fixes := make(chan domain.Location)
	// Unblocks the reader goroutine when the caller cancels.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(fixes)

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var report tpvReport
			if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
				continue
			}
			if report.Class != "TPV" || report.Mode < 2 {
				continue
			}

			fix := domain.Location{
				Latitude:       report.Lat,
				Longitude:      report.Lon,
				AccuracyMeters: report.accuracy(),
				Timestamp:      report.timestamp(),
			}
			select {
			case fixes <- fix:
			case <-ctx.Done():
				return
			}
		}
	}()

	return fixes, nil
}

// tpvReport is a gpsd time-position-velocity report.
type tpvReport struct {
	// Class identifies the report type.
	Class string `json:"class"`
	// Mode is the fix mode: 0/1 no fix, 2 2D fix, 3 3D fix.
	Mode int `json:"mode"`
	// Lat is the latitude in degrees.
	Lat float64 `json:"lat"`
	// Lon is the longitude in degrees.
	Lon float64 `json:"lon"`
	// Epx is the estimated longitude error in meters.
	Epx float64 `json:"epx"`
	// Epy is the estimated latitude error in meters.
	Epy float64 `json:"epy"`
	// Eph is the estimated horizontal position error in meters.
	Eph float64 `json:"eph"`
	// Time is the fix timestamp in RFC3339.
	Time string `json:"time"`
}

// accuracy derives a single horizontal accuracy figure from the report.
func (r tpvReport) accuracy() float64 {
	if r.Eph > 0 {
		return r.Eph
	}
	return math.Max(r.Epx, r.Epy)
}

func (r tpvReport) timestamp() time.Time {
	if t, err := time.Parse(time.RFC3339, r.Time); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
