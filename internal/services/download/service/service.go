// Package service implements the resumable, throttled dataset downloader
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gridintake/internal/modkit/repokit"
	perr "gridintake/internal/platform/errors"
	"gridintake/internal/platform/logger"
	"gridintake/internal/platform/metrics"
	"gridintake/internal/services/download/domain"
)

// Config holds downloader settings
type Config struct {
	Dir         string // canonical dataset directories live here
	TmpDir      string // .part files and extraction sessions
	MaxKbps     int    // default cap, <=0 disables
	HTTPTimeout time.Duration
	ChunkBytes  int
}

// Service implements domain.FetcherPort
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.StorageRepo]
	Cfg     Config
	Client  *http.Client
	Metrics *metrics.Metrics

	now func() time.Time
}

// New constructs the download service
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], cfg Config, m *metrics.Metrics) *Service {
	if db == nil {
		panic("download.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("download.Service requires a non nil Repo binder")
	}
	if cfg.Dir == "" {
		cfg.Dir = "data/downloads"
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = "data/tmp"
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 256 << 10
	}
	// the timeout covers dialing and headers only, bodies run as long as the throttle needs
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HTTPTimeout > 0 {
		tr.ResponseHeaderTimeout = cfg.HTTPTimeout
		tr.TLSHandshakeTimeout = cfg.HTTPTimeout
	}
	return &Service{
		DB:      db,
		Binder:  binder,
		Cfg:     cfg,
		Client:  &http.Client{Transport: tr},
		Metrics: m,
		now:     time.Now,
	}
}

// Fetch returns the local directory holding the dataset for r, downloading it when missing
func (s *Service) Fetch(ctx context.Context, r domain.Request) (string, error) {
	if strings.TrimSpace(r.Distributor) == "" || r.Year <= 0 {
		return "", perr.InvalidArgf("distributor and year are required")
	}
	target := r.Target()
	if strings.ContainsAny(target, `/\`) || target == "." || target == ".." {
		return "", perr.WithField(perr.InvalidArgf("invalid target name %q", target), "target_name")
	}
	dest := filepath.Join(s.Cfg.Dir, target)
	log := logger.C(ctx).With().Str("distributor", r.Distributor).Int("year", r.Year).Logger()

	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		log.Info().Str("path", dest).Msg("download: already present")
		s.Metrics.DownloadDone("cached", 0)
		return dest, nil
	}

	repo := s.Binder.Bind(s.DB)
	start := s.now()
	if err := repo.UpsertLog(ctx, domain.LogEntry{Distributor: r.Distributor, Year: r.Year, Status: domain.LogRunning}); err != nil {
		return "", err
	}

	out, entry, err := s.fetch(ctx, repo, r, dest)
	took := s.now().Sub(start)
	if err != nil {
		log.Error().Err(err).Dur("took", took).Msg("download: failed")
		s.Metrics.DownloadDone("error", took)
		// the job context may be gone already, the log row must still be written
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if lerr := repo.UpsertLog(lctx, domain.LogEntry{
			Distributor: r.Distributor, Year: r.Year, Status: domain.LogError,
			Elapsed: took, Error: err.Error(),
		}); lerr != nil {
			log.Warn().Err(lerr).Msg("download: log write failed")
		}
		return "", err
	}

	if err := repo.UpsertLog(ctx, domain.LogEntry{
		Distributor: r.Distributor, Year: r.Year, Status: domain.LogDone,
		Elapsed: took, Path: out,
	}); err != nil {
		return "", err
	}
	if entry.ID > 0 {
		note := fmt.Sprintf("downloaded %s to %s", s.now().UTC().Format(time.RFC3339), out)
		if err := repo.MarkFetched(ctx, entry.ID, urlHash(entry.URL), note); err != nil {
			log.Warn().Err(err).Int64("catalog_id", entry.ID).Msg("download: mark fetched failed")
		}
	}
	s.Metrics.DownloadDone("ok", took)
	log.Info().Str("path", out).Dur("took", took).Msg("download: done")
	return out, nil
}

func (s *Service) fetch(ctx context.Context, repo domain.StorageRepo, r domain.Request, dest string) (string, domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	src := strings.TrimSpace(r.URL)
	if src == "" {
		e, ok, err := repo.PickCatalog(ctx, r.Distributor, r.Year)
		if err != nil {
			return "", entry, err
		}
		if !ok {
			return "", entry, perr.NotFoundf("no catalog entry for %s/%d", r.Distributor, r.Year)
		}
		entry, src = e, e.URL
	}
	src = arcgisData(src)

	if err := os.MkdirAll(s.Cfg.TmpDir, 0o755); err != nil {
		return "", entry, perr.Wrap(err, perr.ErrorCodeUnknown, "create tmp dir")
	}
	if err := os.MkdirAll(s.Cfg.Dir, 0o755); err != nil {
		return "", entry, perr.Wrap(err, perr.ErrorCodeUnknown, "create download dir")
	}

	file := filepath.Join(s.Cfg.TmpDir, tempName(src, r.Target()))
	kbps := r.MaxKbps
	if kbps <= 0 {
		kbps = s.Cfg.MaxKbps
	}
	t := &transfer{client: s.Client, chunk: s.Cfg.ChunkBytes, metrics: s.Metrics}
	n, err := t.fetch(ctx, src, file, kbps)
	if err != nil {
		return "", entry, err
	}
	logger.C(ctx).Debug().Int64("bytes", n).Str("file", file).Msg("download: transfer complete")

	out, err := s.place(file, dest)
	return out, entry, err
}

// place moves a completed transfer to dest, extracting archives first
func (s *Service) place(file, dest string) (string, error) {
	if !isZip(file) {
		if !isLayerFile(file) {
			return "", perr.Structuralf("downloaded file %s is neither an archive nor a layer file", filepath.Base(file))
		}
		staging := dest + ".tmp"
		_ = os.RemoveAll(staging)
		if err := os.MkdirAll(staging, 0o755); err != nil {
			return "", perr.Wrap(err, perr.ErrorCodeUnknown, "create staging dir")
		}
		if err := os.Rename(file, filepath.Join(staging, filepath.Base(file))); err != nil {
			return "", perr.Wrap(err, perr.ErrorCodeUnknown, "stage layer file")
		}
		if err := os.Rename(staging, dest); err != nil {
			return "", perr.Wrap(err, perr.ErrorCodeUnknown, "finalize dataset dir")
		}
		return dest, nil
	}

	session := filepath.Join(s.Cfg.TmpDir, fmt.Sprintf("extract_%d", s.now().UnixNano()))
	defer func() { _ = os.RemoveAll(session) }()
	if err := extract(file, session); err != nil {
		return "", err
	}
	found, err := locateDataset(session)
	if err != nil {
		return "", err
	}
	if err := os.Rename(found, dest); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "finalize dataset dir")
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Named("download").Warn().Err(err).Str("file", file).Msg("download: archive cleanup failed")
	}
	return dest, nil
}

// arcgisData points ArcGIS item URLs at the item payload
func arcgisData(raw string) string {
	if !strings.Contains(raw, "/sharing/rest/content/items/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || strings.HasSuffix(u.Path, "/data") {
		return raw
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/data"
	return u.String()
}

// tempName derives the staging file name from the URL path, falling back to the target
func tempName(raw, target string) string {
	base := ""
	if u, err := url.Parse(raw); err == nil {
		base = path.Base(u.Path)
	}
	if base == "" || base == "/" || base == "." || base == "data" || !strings.Contains(base, ".") {
		return target + ".zip"
	}
	return base
}

func urlHash(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
