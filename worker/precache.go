package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/pkg/worker"
	"github.com/Siddamnandas/Vibely-sub004/protocol"
	"github.com/Siddamnandas/Vibely-sub004/strategy"
)

// trackJob is one track URL to warm into the dynamic cache, tied back to the
// playlist run that requested it.
type trackJob struct {
	run *playlistRun
	url string
}

// playlistRun tracks one CACHE_PLAYLIST_AUDIO request across its track jobs
// and reports the aggregate result to the originating session.
type playlistRun struct {
	playlistID string
	total      int
	reply      func(protocol.Message)

	mu     sync.Mutex
	cached int
	failed int
}

func (r *playlistRun) finish(ok bool) (done bool, cached, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.cached++
	} else {
		r.failed++
	}
	return r.cached+r.failed == r.total, r.cached, r.failed
}

// Precacher warms playlist audio into the dynamic namespace on page request
// and clears it again on demand. Track downloads run on a bounded pool so a
// large playlist cannot monopolize the worker.
type Precacher struct {
	executor *strategy.Executor
	dynamic  *cachestore.Namespace
	logger   *slog.Logger
	pool     *worker.Pool[trackJob]
}

// NewPrecacher creates a precacher over the dynamic namespace.
func NewPrecacher(executor *strategy.Executor, dynamic *cachestore.Namespace, logger *slog.Logger) (*Precacher, error) {
	if executor == nil {
		return nil, errors.WrapInvalid(nil, "Precacher", "NewPrecacher", "executor cannot be nil")
	}
	if dynamic == nil {
		return nil, errors.WrapInvalid(nil, "Precacher", "NewPrecacher", "dynamic namespace cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Precacher{
		executor: executor,
		dynamic:  dynamic,
		logger:   logger,
	}
	p.pool = worker.NewPool(4, 256, p.processTrack)
	return p, nil
}

// Start launches the track download pool.
func (p *Precacher) Start(ctx context.Context) error {
	return p.pool.Start(ctx)
}

// Stop drains the pool.
func (p *Precacher) Stop(timeout time.Duration) error {
	return p.pool.Stop(timeout)
}

// CachePlaylist warms every track URL of a playlist. Progress and the final
// tally go back through reply as TRACK_CACHED and PLAYLIST_CACHED messages.
func (p *Precacher) CachePlaylist(msg protocol.CachePlaylistAudio, reply func(protocol.Message)) {
	if len(msg.TrackURLs) == 0 {
		reply(protocol.PlaylistCached{PlaylistID: msg.PlaylistID})
		return
	}

	run := &playlistRun{
		playlistID: msg.PlaylistID,
		total:      len(msg.TrackURLs),
		reply:      reply,
	}

	for _, u := range msg.TrackURLs {
		if err := p.pool.Submit(trackJob{run: run, url: u}); err != nil {
			p.logger.Warn("track precache rejected", "playlist", msg.PlaylistID, "url", u, "error", err)
			p.settle(run, "", false)
		}
	}
}

// ClearPlaylist evicts a playlist's cached audio and reports the eviction
// count. Listed track URLs are removed individually; a URL prefix, when
// given, sweeps everything under it.
func (p *Precacher) ClearPlaylist(ctx context.Context, msg protocol.ClearPlaylistCache, reply func(protocol.Message)) {
	cleared := 0
	for _, u := range msg.TrackURLs {
		if err := p.dynamic.Delete(ctx, cachestore.RequestKey("GET", u)); err != nil {
			p.logger.Warn("track eviction failed", "playlist", msg.PlaylistID, "url", u, "error", err)
			continue
		}
		cleared++
	}
	if msg.URLPrefix != "" {
		n, err := p.dynamic.DeletePrefix(ctx, msg.URLPrefix)
		if err != nil {
			p.logger.Error("playlist cache clear failed", "playlist", msg.PlaylistID, "error", err)
		}
		cleared += n
	}
	reply(protocol.CacheCleaned{PlaylistID: msg.PlaylistID, Cleared: cleared})
}

func (p *Precacher) processTrack(ctx context.Context, job trackJob) error {
	req := &strategy.Request{Method: "GET", URL: job.url}
	_, err := p.executor.CacheFirst(ctx, req, p.dynamic, false)
	if err != nil {
		p.logger.Warn("track precache failed", "playlist", job.run.playlistID, "url", job.url, "error", err)
		p.settle(job.run, job.url, false)
		return nil // failure is recorded in the run tally, not retried
	}
	p.settle(job.run, job.url, true)
	return nil
}

func (p *Precacher) settle(run *playlistRun, url string, ok bool) {
	if ok && url != "" {
		run.reply(protocol.TrackCached{PlaylistID: run.playlistID, TrackURL: url})
	}
	done, cached, failed := run.finish(ok)
	if done {
		p.logger.Info("playlist precache complete",
			"playlist", run.playlistID, "cached", cached, "failed", failed)
		run.reply(protocol.PlaylistCached{PlaylistID: run.playlistID, Cached: cached, Failed: failed})
	}
}
