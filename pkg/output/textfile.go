package output

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srodi/pgcache/pkg/types"
)

const namespace = "pgcache"

// newRegistry builds a registry holding one gauge series per measured file.
func newRegistry(stats []types.PageCacheStat) (*prometheus.Registry, error) {
	labels := []string{"path"}
	size := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "file_size_bytes",
		Help:      "File size in bytes at measurement time.",
	}, labels)
	pages := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "file_pages",
		Help:      "Number of pages covering the file.",
	}, labels)
	cached := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "file_cached_pages",
		Help:      "Number of the file's pages resident in the page cache.",
	}, labels)
	percent := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "file_cached_ratio",
		Help:      "Fraction of the file's pages resident in the page cache (0-1).",
	}, labels)
	measured := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "file_measured_timestamp_seconds",
		Help:      "Unix time the residency was measured.",
	}, labels)

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{size, pages, cached, percent, measured} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering page cache gauges")
		}
	}

	for _, stat := range stats {
		size.WithLabelValues(stat.Path).Set(float64(stat.Size))
		pages.WithLabelValues(stat.Path).Set(float64(stat.Pages))
		cached.WithLabelValues(stat.Path).Set(float64(stat.Cached))
		percent.WithLabelValues(stat.Path).Set(stat.Percent / 100)
		if !stat.Timestamp.IsZero() {
			measured.WithLabelValues(stat.Path).Set(float64(stat.Timestamp.UnixNano()) / 1e9)
		}
	}
	return reg, nil
}

// WriteTextfile writes stats in the node_exporter textfile collector format.
// The file is replaced atomically.
func WriteTextfile(path string, stats []types.PageCacheStat) error {
	reg, err := newRegistry(stats)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "writing textfile %s", path)
	}
	return nil
}
