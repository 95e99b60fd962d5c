package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/spatial/internal/geocoding"
	"github.com/UnknownOlympus/spatial/internal/metrics"
	"github.com/UnknownOlympus/spatial/internal/spatial"
)

// Result is the outcome of geocoding one address.
type Result struct {
	Address string        // Address as given by the caller, without prefix.
	Point   spatial.Point // Point is the location found, zero when Err is set.
	Err     error         // Err is the geocoding failure, if any.
}

// BatchGeocoder geocodes many addresses concurrently with a fixed pool of workers.
type BatchGeocoder struct {
	log          *slog.Logger       // Logger for logging service activities
	provider     geocoding.Provider // Geocoding provider for external geocoding services
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking service performance
	numWorkers   int                // Number of concurrent workers
	addrPrefix   string             // Prefix for more accurate geocoding (country, city, etc.)
}

// NewBatchGeocoder creates a BatchGeocoder. A numWorkers below 1 is raised to 1.
func NewBatchGeocoder(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	numWorkers int,
	addrPrefix string,
) *BatchGeocoder {
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &BatchGeocoder{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		numWorkers:   numWorkers,
		addrPrefix:   addrPrefix,
	}
}

type job struct {
	idx     int
	address string
}

// GeocodeAll geocodes every address and returns one Result per address, in the
// same order. Addresses not yet started when ctx is cancelled report ctx.Err().
func (bg *BatchGeocoder) GeocodeAll(ctx context.Context, addresses []string) []Result {
	results := make([]Result, len(addresses))
	if len(addresses) == 0 {
		return results
	}

	workers := min(bg.numWorkers, len(addresses))
	bg.log.InfoContext(ctx, "Starting worker pool.", "jobs", len(addresses), "num_workers", workers)

	jobs := make(chan job, len(addresses))
	for idx, address := range addresses {
		jobs <- job{idx: idx, address: address}
	}
	close(jobs)

	var wgr sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wgr.Add(1)
		go bg.worker(ctx, i, &wgr, jobs, results)
	}
	wgr.Wait()

	bg.log.InfoContext(ctx, "Processing batch finished", "jobs", len(addresses))

	return results
}

// worker drains jobs, writing each outcome into its own slot of results.
func (bg *BatchGeocoder) worker(ctx context.Context, idx int, wg *sync.WaitGroup, jobs <-chan job, results []Result) {
	defer wg.Done()
	for j := range jobs {
		results[j.idx] = Result{Address: j.address}

		if err := ctx.Err(); err != nil {
			results[j.idx].Err = err
			bg.metrics.GeocodeRequests.WithLabelValues("cancelled").Inc()
			continue
		}

		bg.metrics.ActiveWorkers.Inc()
		bg.log.DebugContext(ctx, "Processing address", "worker", idx, "address", j.address)

		startTime := time.Now()
		point, err := bg.provider.Geocode(ctx, bg.addrPrefix+j.address)
		bg.metrics.RequestSeconds.WithLabelValues(bg.providerName).Observe(time.Since(startTime).Seconds())
		bg.metrics.ActiveWorkers.Dec()

		if err != nil {
			bg.log.ErrorContext(ctx, "Failed to geocode", "worker", idx, "address", j.address, "error", err)
			bg.metrics.GeocodeRequests.WithLabelValues("failure").Inc()
			bg.metrics.APIErrors.Inc()
			results[j.idx].Err = err
			continue
		}

		bg.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		results[j.idx].Point = point
		bg.log.DebugContext(ctx, "Worker successfully geocoded the address", "worker", idx, "point", point.String())
	}
}
