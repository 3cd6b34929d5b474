package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// PolarOrder returns |<v>| for a set of unit vectors: 1 for a fully aligned
// swarm, near 0 for an isotropic one. The standard observable for
// Vicsek-style systems.
func PolarOrder(vecs []r3.Vec) float64 {
	if len(vecs) == 0 {
		return 0
	}
	var sum r3.Vec
	for _, v := range vecs {
		sum = r3.Add(sum, v)
	}
	return r3.Norm(sum) / float64(len(vecs))
}

// WindowStats holds aggregated swarm statistics for a stats window.
type WindowStats struct {
	WindowEnd uint64  `csv:"window_end"`
	SimTime   float64 `csv:"sim_time"`
	N         int     `csv:"n"`

	// Polar order parameter over the window
	OrderMean float64 `csv:"order_mean"`
	OrderStd  float64 `csv:"order_std"`
	OrderP10  float64 `csv:"order_p10"`
	OrderP50  float64 `csv:"order_p50"`
	OrderP90  float64 `csv:"order_p90"`

	// Mean active force direction at window end
	MeanFX float64 `csv:"mean_fx"`
	MeanFY float64 `csv:"mean_fy"`
	MeanFZ float64 `csv:"mean_fz"`
}

// Collector accumulates per-tick samples and produces WindowStats.
type Collector struct {
	orders []float64
	start  uint64
}

// NewCollector creates an empty stats collector.
func NewCollector() *Collector {
	return &Collector{orders: make([]float64, 0, 256)}
}

// Record adds one tick's polar order parameter to the current window.
func (c *Collector) Record(order float64) {
	c.orders = append(c.orders, order)
}

// Flush aggregates the current window into a WindowStats row and resets the
// window. vecs are the active vectors at window end.
func (c *Collector) Flush(windowEnd uint64, simTime float64, vecs []r3.Vec) WindowStats {
	ws := WindowStats{
		WindowEnd: windowEnd,
		SimTime:   simTime,
		N:         len(vecs),
	}

	if len(c.orders) > 0 {
		sorted := make([]float64, len(c.orders))
		copy(sorted, c.orders)
		sort.Float64s(sorted)

		ws.OrderMean = stat.Mean(sorted, nil)
		ws.OrderStd = stat.StdDev(sorted, nil)
		ws.OrderP10 = stat.Quantile(0.1, stat.Empirical, sorted, nil)
		ws.OrderP50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		ws.OrderP90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}

	if len(vecs) > 0 {
		var sum r3.Vec
		for _, v := range vecs {
			sum = r3.Add(sum, v)
		}
		mean := r3.Scale(1/float64(len(vecs)), sum)
		ws.MeanFX = mean.X
		ws.MeanFY = mean.Y
		ws.MeanFZ = mean.Z
	}

	c.orders = c.orders[:0]
	c.start = windowEnd
	return ws
}

// LogStats logs the window via slog.
func (ws WindowStats) LogStats() {
	slog.Info("swarm",
		"window_end", ws.WindowEnd,
		"sim_time", ws.SimTime,
		"n", ws.N,
		"order_mean", ws.OrderMean,
		"order_p50", ws.OrderP50,
	)
}
