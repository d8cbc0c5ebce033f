// Package raster provides the GDAL-based geometry extractor.
package raster

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

var registerOnce sync.Once

// Config holds the GDAL settings used to open rasters.
type Config struct {
	// TargetEPSG reprojects bounds to this code; 0 keeps the native reference system.
	TargetEPSG int

	// S3 access for /vsis3/. Empty values leave GDAL's own defaults.
	S3Endpoint       string
	S3HTTPS          bool
	S3VirtualHosting bool
	S3Region         string
	AccessKeyID      string
	SecretAccessKey  string
}

// Extractor implements output.GeometryExtractor with GDAL.
type Extractor struct {
	cfg     Config
	options []string
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewExtractor creates a geometry extractor and registers the GDAL drivers.
func NewExtractor(cfg Config, metrics output.MetricsCollector, logger *slog.Logger) *Extractor {
	registerOnce.Do(godal.RegisterAll)
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Extractor{
		cfg:     cfg,
		options: configOptions(cfg),
		metrics: metrics,
		logger:  logger,
	}
}

// Extract implements output.GeometryExtractor.
func (e *Extractor) Extract(ctx context.Context, uri string) (domain.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Geometry{}, &domain.ExtractionError{URI: uri, Err: err}
	}

	start := time.Now()
	geom, err := e.extract(uri)
	e.metrics.ObserveExtractionDuration(err == nil, time.Since(start))
	if err != nil {
		return domain.Geometry{}, &domain.ExtractionError{URI: uri, Err: err}
	}

	e.logger.Debug("extracted geometry",
		"uri", uri,
		"bbox", geom.BBox.Slice(),
		"duration", time.Since(start),
	)
	return geom, nil
}

func (e *Extractor) extract(uri string) (domain.Geometry, error) {
	name, err := GDALPath(uri)
	if err != nil {
		return domain.Geometry{}, err
	}

	var openOpts []godal.OpenOption
	openOpts = append(openOpts, godal.RasterOnly())
	if len(e.options) > 0 {
		openOpts = append(openOpts, godal.ConfigOption(e.options...))
	}

	ds, err := godal.Open(name, openOpts...)
	if err != nil {
		return domain.Geometry{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer func() { _ = ds.Close() }()

	// Both a geotransform and a reference system are required, also when
	// the bounds are kept in the native system.
	if _, err := ds.GeoTransform(); err != nil {
		return domain.Geometry{}, fmt.Errorf("%s: no geotransform: %w", name, domain.ErrNoSpatialReference)
	}
	if ds.SpatialRef() == nil {
		return domain.Geometry{}, fmt.Errorf("%s: no reference system: %w", name, domain.ErrNoSpatialReference)
	}

	var bounds [4]float64
	if e.cfg.TargetEPSG != 0 {
		target, err := godal.NewSpatialRefFromEPSG(e.cfg.TargetEPSG)
		if err != nil {
			return domain.Geometry{}, fmt.Errorf("EPSG:%d: %w", e.cfg.TargetEPSG, err)
		}
		defer target.Close()
		bounds, err = ds.Bounds(target)
		if err != nil {
			return domain.Geometry{}, fmt.Errorf("reprojecting bounds: %w", err)
		}
	} else {
		bounds, err = ds.Bounds()
		if err != nil {
			return domain.Geometry{}, fmt.Errorf("reading bounds: %w", err)
		}
	}

	return domain.NewRectangleGeometry(domain.BBox(bounds))
}

// GDALPath maps an object URI to a GDAL virtual file system path.
func GDALPath(uri string) (string, error) {
	switch domain.Scheme(uri) {
	case "":
		return uri, nil
	case "file":
		return strings.TrimPrefix(uri, "file://"), nil
	case "s3":
		return "/vsis3/" + uri[len("s3://"):], nil
	case "az":
		return "/vsiaz/" + uri[len("az://"):], nil
	case "http", "https":
		return "/vsicurl/" + uri, nil
	default:
		return "", fmt.Errorf("%s: %w", uri, domain.ErrUnsupportedScheme)
	}
}

// configOptions renders the GDAL config options for /vsis3/.
func configOptions(cfg Config) []string {
	var opts []string
	if cfg.S3Endpoint != "" {
		host := cfg.S3Endpoint
		https := cfg.S3HTTPS
		if u, err := url.Parse(cfg.S3Endpoint); err == nil && u.Host != "" {
			host = u.Host
			https = u.Scheme == "https"
		}
		opts = append(opts,
			"AWS_S3_ENDPOINT="+host,
			"AWS_HTTPS="+yesNo(https),
			"AWS_VIRTUAL_HOSTING="+strings.ToUpper(fmt.Sprint(cfg.S3VirtualHosting)),
		)
	}
	if cfg.S3Region != "" {
		opts = append(opts, "AWS_REGION="+cfg.S3Region)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts,
			"AWS_ACCESS_KEY_ID="+cfg.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY="+cfg.SecretAccessKey,
		)
	}
	return opts
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
