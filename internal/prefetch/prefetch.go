// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package prefetch obtains content hashes for crates
// that are downloaded from a registry or checked out from git.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"zb.256lights.llc/crate2nix"
	"zb.256lights.llc/crate2nix/internal/hashcache"
	"zb.256lights.llc/crate2nix/internal/progress"
	"zombiezen.com/go/log"
)

// Options is the set of optional parameters to [Prefetch].
type Options struct {
	// CacheFile is the path to the hash cache file.
	// If empty, no cache is read or written.
	CacheFile string
	// ResetCorruptCache makes Prefetch ignore a corrupt cache file
	// (and overwrite it later) instead of failing.
	ResetCorruptCache bool
	// Jobs is the maximum number of prefetch commands to run at once.
	// If non-positive, [DefaultJobs] is used.
	Jobs int
	// Fetcher computes hashes.
	// If nil, a zero [Commands] is used.
	Fetcher Fetcher
	// Progress is called with the number of finished fetches
	// out of the number of distinct sources to fetch.
	// It may be called concurrently.
	Progress progress.Func
}

// DefaultJobs returns the default number of concurrent prefetch commands.
// The commands spend most of their time waiting on the network,
// so this is a small multiple of the available parallelism.
func DefaultJobs() int {
	return 4 * runtime.GOMAXPROCS(0)
}

// job is a single source to fetch
// along with every package that uses it.
type job struct {
	src crate2nix.Source
	ids []crate2nix.PackageID
}

// fetchResult is the outcome of a successful job.
type fetchResult struct {
	ids  []crate2nix.PackageID
	hash string
}

// Prefetch ensures that every crate in crates that comes from a registry without a hash
// or from git has a content hash.
// Hashes are looked up in the cache file first.
// The remaining sources are prefetched concurrently,
// each distinct source exactly once.
// On success, Prefetch stores the hashes in the crates' sources,
// writes the cache file if it changed,
// and returns the hashes of all the prefetched crates (cached or not).
//
// If any fetch fails, Prefetch stops starting new fetches,
// waits for the running ones to finish,
// and returns the first error without modifying crates or the cache file.
func Prefetch(ctx context.Context, crates []*crate2nix.CrateDerivation, opts *Options) (hashcache.Cache, error) {
	if opts == nil {
		opts = new(Options)
	}
	if err := crate2nix.CheckUniqueIDs(crates); err != nil {
		return nil, fmt.Errorf("prefetch: %v", err)
	}

	oldCache, err := hashcache.Load(opts.CacheFile)
	var corrupt *hashcache.CorruptError
	if errors.As(err, &corrupt) && opts.ResetCorruptCache {
		log.Warnf(ctx, "Ignoring %v", err)
		oldCache, err = make(hashcache.Cache), nil
	}
	if err != nil {
		return nil, err
	}

	// The cache is only read here, before any fetch is started.
	var selected []*crate2nix.CrateDerivation
	var jobs []*job
	jobIndex := make(map[crate2nix.Source]int)
	for _, c := range crates {
		if !crate2nix.NeedsPrefetch(c.Source) {
			continue
		}
		selected = append(selected, c)
		if _, cached := oldCache[c.PackageID]; cached {
			continue
		}
		key := c.Source.WithHash("")
		i, ok := jobIndex[key]
		if !ok {
			i = len(jobs)
			jobIndex[key] = i
			jobs = append(jobs, &job{src: key})
		}
		jobs[i].ids = append(jobs[i].ids, c.PackageID)
	}
	log.Debugf(ctx, "%d of %d crates need a hash; %d sources to prefetch", len(selected), len(crates), len(jobs))

	fetched, err := runJobs(ctx, jobs, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]crate2nix.PackageID, 0, len(selected))
	for _, c := range selected {
		ids = append(ids, c.PackageID)
	}
	newCache := hashcache.Reconcile(oldCache, ids, fetched)
	for _, c := range selected {
		hash, ok := newCache[c.PackageID]
		if !ok {
			return nil, fmt.Errorf("prefetch %s: no hash found", c.PackageID)
		}
		c.Source = c.Source.WithHash(hash)
	}

	written, err := hashcache.Persist(opts.CacheFile, oldCache, newCache)
	if err != nil {
		return nil, err
	}
	if written {
		log.Infof(ctx, "Wrote hashes to %s.", opts.CacheFile)
	}
	return newCache, nil
}

// runJobs fetches every job with bounded concurrency.
// Results are keyed by package ID since jobs finish in arbitrary order.
func runJobs(ctx context.Context, jobs []*job, opts *Options) (map[crate2nix.PackageID]string, error) {
	fetched := make(map[crate2nix.PackageID]string)
	if len(jobs) == 0 {
		return fetched, nil
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = new(Commands)
	}
	limit := opts.Jobs
	if limit <= 0 {
		limit = DefaultJobs()
	}

	counter := progress.NewCounter(len(jobs), opts.Progress)
	results := make(chan fetchResult, len(jobs))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	for _, j := range jobs {
		// Go blocks until a slot is free.
		// Stop admitting new work once any fetch has failed.
		if grpCtx.Err() != nil {
			break
		}
		grp.Go(func() error {
			// Go may have waited for the slot of a fetch that failed.
			if grpCtx.Err() != nil {
				return nil
			}
			// Running fetches use ctx rather than grpCtx
			// so that one failure does not kill the others.
			hash, err := fetcher.Fetch(ctx, j.src)
			if err != nil {
				log.Debugf(ctx, "Prefetching %v failed: %v", j.src, err)
				return fmt.Errorf("prefetch %s: %w", j.ids[0], err)
			}
			counter.Inc()
			results <- fetchResult{ids: j.ids, hash: hash}
			return nil
		})
	}
	err := grp.Wait()
	close(results)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for r := range results {
		for _, id := range r.ids {
			fetched[id] = r.hash
		}
	}
	return fetched, nil
}
