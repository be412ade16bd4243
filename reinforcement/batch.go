package reinforcement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"learnpath/atomic_float"
	. "learnpath/grid_world"
)

// RolloutRequest is one start/goal pair of a batch. MaxSteps zero uses the navigator default.
type RolloutRequest struct {
	Start    Position `json:"startPosition"`
	Goal     Position `json:"goalPosition"`
	MaxSteps int      `json:"maxSteps,omitempty"`
}

// BatchReport holds the episodes of a batch, in request order, and their aggregates.
type BatchReport struct {
	Episodes          []*Episode `json:"episodes"`
	GoalReached       int        `json:"goalReached"`
	StepLimitExceeded int        `json:"stepLimitExceeded"`
	TotalSteps        int64      `json:"totalSteps"`
	MeanReturn        float64    `json:"meanReturn"`
}

// progressInterval paces the debug progress log of long batches.
const progressInterval = 2 * time.Second

type indexedEpisode struct {
	index   int
	episode *Episode
}

// RolloutAll runs the requests on @nworkers goroutines. Rollouts only read the navigator,
// so workers share it without locking; each worker sends its episodes on its own channel
// and these are fanned in to a single collector. The first failing request cancels the rest
// and its error is returned, as is the context's error if it is cancelled first.
func (nav *Navigator) RolloutAll(
	ctx context.Context,
	requests []RolloutRequest,
	nworkers int,
) (*BatchReport, error) {
	if nworkers < 1 {
		nworkers = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)

	jobs := make(chan int)
	group.Go(func() error {
		defer close(jobs)
		for i := range requests {
			select {
			case jobs <- i:
			case <-groupCtx.Done():
				return nil
			}
		}
		return nil
	})

	returns := atomic_float.NewAtomicFloat64(0)
	var totalSteps atomic.Int64

	worker := func() <-chan indexedEpisode {
		episodes := make(chan indexedEpisode)
		group.Go(func() error {
			defer close(episodes)
			for i := range jobs {
				if groupCtx.Err() != nil {
					return nil
				}
				req := requests[i]
				episode, err := nav.Rollout(req.Start, req.Goal, req.MaxSteps)
				if err != nil {
					return fmt.Errorf("request %d: %w", i, err)
				}
				returns.Add(episode.Return)
				totalSteps.Add(int64(episode.TotalSteps))

				select {
				case episodes <- indexedEpisode{index: i, episode: episode}:
				case <-groupCtx.Done():
					return nil
				}
			}
			return nil
		})
		return episodes
	}

	workers := []<-chan indexedEpisode{}
	for i := 0; i < nworkers; i++ {
		workers = append(workers, worker())
	}
	results := channerics.Merge(groupCtx.Done(), workers...)

	report := &BatchReport{Episodes: make([]*Episode, len(requests))}
	progress := channerics.NewTicker(groupCtx.Done(), progressInterval)
	collected := 0
	for collecting := true; collecting; {
		select {
		case result, ok := <-results:
			if !ok {
				collecting = false
				break
			}
			collected++
			report.Episodes[result.index] = result.episode
			switch result.episode.Outcome {
			case GOAL_REACHED:
				report.GoalReached++
			case STEP_LIMIT_EXCEEDED:
				report.StepLimitExceeded++
			}
		case _, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			nav.logger.Debug("batch progress", "collected", collected, "requests", len(requests))
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.TotalSteps = totalSteps.Load()
	if len(requests) > 0 {
		report.MeanReturn = returns.AtomicRead() / float64(len(requests))
	}
	nav.logger.Info("batch finished",
		"requests", len(requests),
		"workers", nworkers,
		"goalReached", report.GoalReached,
		"stepLimitExceeded", report.StepLimitExceeded,
		"meanReturn", report.MeanReturn)
	return report, nil
}

// CornerRequests builds one request per distinct resource position, each heading for the
// far corner of the grid, in dataset order.
func CornerRequests(grid *Grid) []RolloutRequest {
	space := grid.Space()
	corner := Position{X: space.Width - 1, Y: space.Height - 1}

	seen := map[Position]struct{}{}
	requests := []RolloutRequest{}
	for _, cell := range grid.Cells() {
		pos := cell.Position()
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		requests = append(requests, RolloutRequest{Start: pos, Goal: corner})
	}
	return requests
}
