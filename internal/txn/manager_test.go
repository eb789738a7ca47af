package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

func testLog() logger.LogHandler {
	return logger.NewLogger(nil)
}

func newTestManager(numConnectors int) (*Manager, *station.Station, *configstore.Store) {
	log := testLog()
	cs := configstore.NewStore(log)
	tmpl := &station.StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: station.RawNumberOrSlice{float64(numConnectors)},
	}
	st := station.NewStation(tmpl, 0, cs, log)
	transport := ocppj.NewTransport(st.ChargingStationId, time.Second, nil, log)
	return NewManager(st, tmpl, transport, cs, log), st, cs
}

func TestSampleIntervalDefaultsWhenKeyAbsent(t *testing.T) {
	m, _, _ := newTestManager(1)
	assert.Equal(t, defaultSampleInterval, m.sampleInterval())
}

func TestSampleIntervalReadsConfigStore(t *testing.T) {
	m, _, cs := newTestManager(1)
	cs.Add("MeterValueSampleInterval", "30", false, true, false)
	assert.Equal(t, 30*time.Second, m.sampleInterval())
}

func TestSampleIntervalIgnoresNonPositiveValue(t *testing.T) {
	m, _, cs := newTestManager(1)
	cs.Add("MeterValueSampleInterval", "0", false, true, false)
	assert.Equal(t, defaultSampleInterval, m.sampleInterval())
}

func TestStartTransactionFailsWhenConnectorMissing(t *testing.T) {
	m, _, _ := newTestManager(1)
	transactionId, status := m.StartTransaction(99, "tag")
	assert.Equal(t, 0, transactionId)
	assert.NotEqual(t, "Accepted", string(status))
}
