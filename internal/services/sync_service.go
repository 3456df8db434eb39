package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
)

// CacheRebuilder replaces a team's cached rows wholesale.
type CacheRebuilder interface {
	Rebuild(teamID string, patients []remote.Patient, captures []remote.Capture) error
}

// SyncService reconciles derived state with the remote authority: the local
// cache and blobs no capture refers to any more.
type SyncService struct {
	store remote.Store
	blobs blob.Store
	cache CacheRebuilder
	now   func() time.Time
}

// sweepGrace protects blobs whose capture document may still be in flight.
const sweepGrace = 10 * time.Minute

func NewSyncService(store remote.Store, blobs blob.Store, cache CacheRebuilder) *SyncService {
	return &SyncService{store: store, blobs: blobs, cache: cache, now: time.Now}
}

// Resync rebuilds the cache rows of one team from remote.
func (s *SyncService) Resync(ctx context.Context, teamID string) (*dto.SyncResponse, error) {
	var patients []remote.Patient
	if err := s.store.Find(ctx, remote.Patients, remote.Where("team_id", teamID), &patients); err != nil {
		return nil, upstream(err)
	}
	var captures []remote.Capture
	if err := s.store.Find(ctx, remote.Captures, remote.Where("team_id", teamID), &captures); err != nil {
		return nil, upstream(err)
	}
	if err := s.cache.Rebuild(teamID, patients, captures); err != nil {
		return nil, fmt.Errorf("rebuild cache for team %s: %w", teamID, err)
	}
	return &dto.SyncResponse{Teams: 1, Patients: len(patients), Captures: len(captures)}, nil
}

// ResyncAll rebuilds every team. A failing team is logged and skipped.
func (s *SyncService) ResyncAll(ctx context.Context) (*dto.SyncResponse, error) {
	var teams []remote.Team
	if err := s.store.Find(ctx, remote.Teams, remote.Query{}, &teams); err != nil {
		return nil, upstream(err)
	}

	total := &dto.SyncResponse{}
	for _, t := range teams {
		res, err := s.Resync(ctx, t.ID)
		if err != nil {
			slog.Error("cache resync failed", "action", "resync", "team_id", t.ID, "error", err)
			continue
		}
		total.Teams++
		total.Patients += res.Patients
		total.Captures += res.Captures
	}
	slog.Info("cache resync completed", "teams", total.Teams, "patients", total.Patients, "captures", total.Captures)
	return total, nil
}

// SweepOrphanBlobs deletes blobs under patients/ that no capture references.
// With dryRun nothing is deleted. It returns the orphaned paths.
func (s *SyncService) SweepOrphanBlobs(ctx context.Context, dryRun bool) ([]string, error) {
	var captures []remote.Capture
	if err := s.store.Find(ctx, remote.Captures, remote.Query{}, &captures); err != nil {
		return nil, upstream(err)
	}
	referenced := make(map[string]struct{}, len(captures)*2)
	for _, c := range captures {
		referenced[c.StoragePath] = struct{}{}
		if c.AnnotatedPath != "" {
			referenced[c.AnnotatedPath] = struct{}{}
		}
	}

	entries, err := s.blobs.List(ctx, "patients/")
	if err != nil {
		return nil, upstream(err)
	}

	now := s.now()
	var orphans []string
	for _, e := range entries {
		if _, ok := referenced[e.Path]; ok || tooRecent(e, now) {
			continue
		}
		orphans = append(orphans, e.Path)
		if dryRun {
			continue
		}
		if err := s.blobs.Delete(ctx, e.Path); err != nil {
			slog.Error("orphan blob delete failed", "action", "sweep", "path", e.Path, "error", err)
		}
	}
	slog.Info("blob sweep completed", "orphans", len(orphans), "dry_run", dryRun)
	return orphans, nil
}

// StartPeriodic runs fn every interval until done is closed. A zero interval
// disables the job.
func StartPeriodic(name string, interval time.Duration, done chan struct{}, fn func(ctx context.Context) error) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if err := fn(ctx); err != nil {
					slog.Error("periodic job failed", "action", name, "error", err)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()
}

// tooRecent reports whether a blob may still be waiting for the document
// that will reference it. Upload time decides, not the name: an annotation
// saved today carries the timestamp of an older capture.
func tooRecent(e blob.Entry, now time.Time) bool {
	return now.Sub(e.UploadedAt) < sweepGrace
}
