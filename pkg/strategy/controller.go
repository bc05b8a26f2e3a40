package strategy

import (
	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/logger"
)

// DefaultSampleSize is the number of trailing bars indicators are computed on
const DefaultSampleSize = 300

// Controller feeds completed candles to a strategy
type Controller struct {
	strategy         core.Strategy
	dataframeManager *DataframeManager
	broker           core.Broker
	log              logger.Logger
	sampleSize       int
	started          bool
}

// NewStrategyController creates a new strategy controller
func NewStrategyController(pair string, strategy core.Strategy, broker core.Broker, log logger.Logger) *Controller {
	return &Controller{
		dataframeManager: NewDataframeManager(pair),
		strategy:         strategy,
		broker:           broker,
		log:              log,
		sampleSize:       DefaultSampleSize,
	}
}

// SetSampleSize changes the indicator window; it never drops below the warmup period
func (c *Controller) SetSampleSize(size int) {
	c.sampleSize = size
}

// Start begins the strategy execution
func (c *Controller) Start() {
	c.started = true
}

// OnCandle processes completed candles
func (c *Controller) OnCandle(candle core.Candle) {
	if !candle.Complete {
		return
	}

	if c.dataframeManager.IsLateCandle(candle) {
		c.log.Errorf("late candle received: %#v", candle)
		return
	}

	c.dataframeManager.UpdateDataFrame(candle)

	warmup := c.strategy.WarmupPeriod()
	if !c.dataframeManager.HasSufficientData(warmup) {
		return
	}

	sample := c.dataframeManager.GetSample(max(warmup, c.sampleSize))
	c.strategy.Indicators(&sample)

	if c.started {
		c.strategy.OnCandle(&sample, c.broker)
	}
}
