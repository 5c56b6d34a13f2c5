package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	appconfig "ofiflow/config"
	"ofiflow/logger"
	"ofiflow/models"
	"ofiflow/ofi"
	"ofiflow/reader"
)

// InstrumentResult carries everything the pipeline derived for one
// instrument: the cumulative OFI series, the depth profile used for
// scaling, the integrated signal and the mid-price change series.
type InstrumentResult struct {
	Instrument string
	Series     *models.OFISeries
	Depth      *models.DepthProfile
	Signal     *models.IntegratedSignal
	MidTimes   []int64
	MidChanges []float64
}

// Result is the output of one full pipeline run. Instruments holds the
// per-instrument results in config order, minus any instrument that failed;
// Failed maps those instruments to the error that excluded them.
// CrossImpact holds one fitted regression per surviving target instrument;
// TargetErrors lists targets whose regression failed even though their own
// signal was fine (they still served as sources and keep their outputs).
type Result struct {
	Instruments  []*InstrumentResult
	Failed       map[string]error
	CrossImpact  map[string]models.CrossImpactResult
	TargetErrors map[string]error
}

// Pipeline orchestrates the per-instrument analysis stages and the final
// cross-impact estimation. Instruments are processed concurrently, bounded
// by analysis.max_workers, and a failure in one instrument never aborts the
// others.
type Pipeline struct {
	config *appconfig.Config
	log    *logger.Log

	mu      sync.Mutex
	results map[string]*InstrumentResult
	failed  map[string]error
}

func NewPipeline(cfg *appconfig.Config) *Pipeline {
	return &Pipeline{
		config:  cfg,
		log:     logger.GetLogger(),
		results: make(map[string]*InstrumentResult),
		failed:  make(map[string]error),
	}
}

// Run executes the whole analysis: per-instrument fan-out, join, alignment
// onto the first surviving instrument's grid, then cross-impact regression.
// It fails only when no instrument survives the per-instrument stages or
// when the cross-impact stage rejects the aligned panel as a whole.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"operation": "run"})

	instruments := p.config.Analysis.Instruments
	numWorkers := p.config.Analysis.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(instruments) {
		numWorkers = len(instruments)
	}

	log.WithFields(logger.Fields{
		"instruments": len(instruments),
		"workers":     numWorkers,
		"levels":      p.config.Analysis.Levels,
	}).Info("starting analysis run")

	jobs := make(chan string, len(instruments))
	for _, sym := range instruments {
		jobs <- sym
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobs, &wg)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	survivors := make([]*InstrumentResult, 0, len(instruments))
	for _, sym := range instruments {
		if res, ok := p.results[sym]; ok {
			survivors = append(survivors, res)
		}
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("all %d instruments failed", len(instruments))
	}

	crossImpact, targetErrs, err := p.estimateCrossImpact(survivors)
	if err != nil {
		return nil, err
	}

	// Alignment may have excluded further instruments; drop them here too.
	kept := survivors[:0]
	for _, res := range survivors {
		if _, bad := p.failed[res.Instrument]; !bad {
			kept = append(kept, res)
		}
	}
	survivors = kept

	log.WithFields(logger.Fields{
		"survivors": len(survivors),
		"failed":    len(p.failed),
		"targets":   len(crossImpact),
	}).Info("analysis run complete")

	return &Result{
		Instruments:  survivors,
		Failed:       p.failed,
		CrossImpact:  crossImpact,
		TargetErrors: targetErrs,
	}, nil
}

func (p *Pipeline) worker(ctx context.Context, workerID int, jobs <-chan string, wg *sync.WaitGroup) {
	defer wg.Done()

	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"worker_id": workerID})

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case sym, ok := <-jobs:
			if !ok {
				return
			}

			start := time.Now()
			res, err := p.processInstrument(sym)
			duration := time.Since(start)

			p.mu.Lock()
			if err != nil {
				p.failed[sym] = err
			} else {
				p.results[sym] = res
			}
			p.mu.Unlock()

			if err != nil {
				logger.IncrementInstrumentFailure()
				log.WithError(err).WithFields(logger.Fields{"instrument": sym}).Error("instrument excluded from run")
				continue
			}

			logger.LogPerformanceEntry(log, "pipeline", "process_instrument", duration, logger.Fields{
				"instrument": sym,
				"steps":      len(res.Signal.Values),
			})
		}
	}
}

// processInstrument runs the per-instrument stages: load, level flows,
// cumulative OFI, depth scaling, principal component reduction and the
// mid-price change series.
func (p *Pipeline) processInstrument(sym string) (*InstrumentResult, error) {
	levels := p.config.Analysis.Levels
	path := filepath.Join(p.config.Data.Dir, sym+".csv")

	snapshots, err := reader.LoadSnapshots(path, sym)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	flows, err := ofi.ComputeLevelFlows(snapshots, levels)
	if err != nil {
		return nil, fmt.Errorf("level flows: %w", err)
	}

	series := ofi.AggregateOFI(flows)

	scaled, depth, err := ofi.NormalizeDepth(series, snapshots, levels)
	if err != nil {
		return nil, fmt.Errorf("depth scaling: %w", err)
	}

	signal, err := ofi.ReduceToIntegratedSignal(series, scaled)
	if err != nil {
		return nil, fmt.Errorf("signal reduction: %w", err)
	}

	midTimes, midChanges, err := MidPriceChanges(snapshots)
	if err != nil {
		return nil, fmt.Errorf("price changes: %w", err)
	}

	return &InstrumentResult{
		Instrument: sym,
		Series:     series,
		Depth:      depth,
		Signal:     signal,
		MidTimes:   midTimes,
		MidChanges: midChanges,
	}, nil
}

// estimateCrossImpact aligns every surviving instrument onto the first
// survivor's timestamp grid and fits the per-target regressions. Instruments
// that cannot be aligned within tolerance drop out here, the same isolation
// the per-instrument stages apply.
func (p *Pipeline) estimateCrossImpact(survivors []*InstrumentResult) (map[string]models.CrossImpactResult, map[string]error, error) {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"operation": "cross_impact"})

	grid := survivors[0].Signal.Timestamps
	tolerance := int64(p.config.Analysis.AlignToleranceMs) * int64(time.Millisecond)

	features := make(map[string][]float64, len(survivors))
	priceChanges := make(map[string][]float64, len(survivors))
	sources := make([]string, 0, len(survivors))
	for _, res := range survivors {
		sig, err := AlignToGrid(res.Instrument, grid, res.Signal.Timestamps, res.Signal.Values, tolerance)
		if err != nil {
			p.failed[res.Instrument] = err
			logger.IncrementInstrumentFailure()
			log.WithError(err).WithFields(logger.Fields{"instrument": res.Instrument}).Error("instrument excluded at alignment")
			continue
		}
		chg, err := AlignToGrid(res.Instrument, grid, res.MidTimes, res.MidChanges, tolerance)
		if err != nil {
			p.failed[res.Instrument] = err
			logger.IncrementInstrumentFailure()
			log.WithError(err).WithFields(logger.Fields{"instrument": res.Instrument}).Error("instrument excluded at alignment")
			continue
		}
		features[res.Instrument] = sig
		priceChanges[res.Instrument] = chg
		sources = append(sources, res.Instrument)
	}
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no instrument survived alignment")
	}

	results, perTarget, err := ofi.EstimateCrossImpact(sources, features, priceChanges)
	if err != nil {
		return nil, nil, fmt.Errorf("cross-impact estimation: %w", err)
	}
	for sym, terr := range perTarget {
		log.WithError(terr).WithFields(logger.Fields{"instrument": sym}).Error("target regression failed")
	}

	return results, perTarget, nil
}
