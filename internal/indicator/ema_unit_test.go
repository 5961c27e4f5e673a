package indicator

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/stretchr/testify/suite"
)

type EMAUnitTestSuite struct {
	suite.Suite
}

func TestEMAUnitSuite(t *testing.T) {
	suite.Run(t, new(EMAUnitTestSuite))
}

func (suite *EMAUnitTestSuite) TestNewEMA() {
	ema := NewEMA()
	suite.NotNil(ema)

	// Cast to *EMA to check default values
	emaImpl := ema.(*EMA)
	suite.Equal(50, emaImpl.period)
}

func (suite *EMAUnitTestSuite) TestName() {
	ema := NewEMA()
	suite.Equal(types.IndicatorTypeEMA, ema.Name())
}

func (suite *EMAUnitTestSuite) TestConfigValid() {
	ema := NewEMA()
	emaImpl := ema.(*EMA)

	err := ema.Config(10)
	suite.NoError(err)
	suite.Equal(10, emaImpl.period)
}

func (suite *EMAUnitTestSuite) TestConfigInvalid() {
	ema := NewEMA()

	suite.Error(ema.Config())
	suite.Error(ema.Config("10"))
	suite.Error(ema.Config(0))
}

func (suite *EMAUnitTestSuite) TestConstantSeriesConverges() {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1234.5
	}

	for _, period := range []int{5, 20, 50, 60} {
		suite.InDelta(1234.5, ExponentialMovingAverage(closes, period), 1e-9)
	}
}

func (suite *EMAUnitTestSuite) TestSeededByFirstClose() {
	// alpha = 2/(2+1) = 2/3
	// ema0 = 10, ema1 = 20*2/3 + 10/3 = 16.666..., ema2 = 30*2/3 + 16.666/3 = 25.555...
	result := ExponentialMovingAverage([]float64{10, 20, 30}, 2)
	suite.InDelta(25.5555555, result, 1e-6)
}

func (suite *EMAUnitTestSuite) TestInsufficientDataReturnsLatestClose() {
	suite.Equal(30.0, ExponentialMovingAverage([]float64{10, 20, 30}, 50))
	suite.Equal(0.0, ExponentialMovingAverage(nil, 50))
}

func (suite *EMAUnitTestSuite) TestRawValuePeriodOverride() {
	ema := NewEMA()
	closes := []float64{10, 20, 30}

	// default period 50 has insufficient data
	value, err := ema.RawValue(closes)
	suite.NoError(err)
	suite.Equal(30.0, value)

	value, err = ema.RawValue(closes, 2)
	suite.NoError(err)
	suite.InDelta(25.5555555, value, 1e-6)

	value, err = ema.RawValue(closes, optional.Some(2))
	suite.NoError(err)
	suite.InDelta(25.5555555, value, 1e-6)

	value, err = ema.RawValue(closes, optional.None[int]())
	suite.NoError(err)
	suite.Equal(30.0, value)

	_, err = ema.RawValue(closes, "2")
	suite.Error(err)

	_, err = ema.RawValue(closes, -1)
	suite.Error(err)
}
