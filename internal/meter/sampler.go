package meter

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

// defaultVoltageOut is used when a template omits voltageOut.
const defaultVoltageOut = 230.0

// Sampler periodically synthesizes and sends MeterValues for one
// connector's running transaction. It implements station.Sampler so a
// Connector can hold and stop it without the station package depending on
// this one.
type Sampler struct {
	connectorId  int
	st           *station.Station
	transport    *ocppj.Transport
	cs           *configstore.Store
	interval     time.Duration
	maxPowerW    float64
	numberPhases int
	voltageOut   float64
	powerOutType station.PowerOutType
	log          logger.LogHandler

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSampler(connectorId int, st *station.Station, transport *ocppj.Transport, cs *configstore.Store, interval time.Duration, maxPowerW float64, numberPhases int, voltageOut float64, powerOutType station.PowerOutType, log logger.LogHandler) *Sampler {
	if numberPhases <= 0 {
		numberPhases = 1
	}
	if voltageOut <= 0 {
		voltageOut = defaultVoltageOut
	}
	if powerOutType == "" {
		powerOutType = station.PowerOutAC
	}
	return &Sampler{
		connectorId:  connectorId,
		st:           st,
		transport:    transport,
		cs:           cs,
		interval:     interval,
		maxPowerW:    maxPowerW,
		numberPhases: numberPhases,
		voltageOut:   voltageOut,
		powerOutType: powerOutType,
		log:          log,
		stop:         make(chan struct{}),
	}
}

// Start runs the sampling loop in its own goroutine. The caller installs
// the returned Sampler onto the connector with Connector.SetSampler so a
// later transaction end can stop it.
func (s *Sampler) Start() {
	go s.run()
}

func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Sampler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	connector := s.st.Connector(s.connectorId)
	if connector == nil || !connector.HasActiveTransaction() {
		return
	}

	powerDivider := s.st.PowerDivider()
	if powerDivider <= 0 {
		s.log.Error("meter sample", fmt.Errorf("connector %d: power divider is undefined", s.connectorId))
		return
	}

	var samples []messages.SampledValue
	if len(connector.MeterValues) == 0 {
		samples = append(samples, s.samplesFor(station.MeterValueTemplate{}, connector, powerDivider)...)
	} else {
		for _, tmpl := range connector.MeterValues {
			samples = append(samples, s.samplesFor(tmpl, connector, powerDivider)...)
		}
	}
	if len(samples) == 0 {
		return
	}

	request := &messages.MeterValuesRequest{
		ConnectorId:   s.connectorId,
		TransactionId: connector.TransactionId,
		MeterValue: []messages.MeterValue{{
			Timestamp:    messages.NewDateTime(time.Now()),
			SampledValue: samples,
		}},
	}

	_, _, err := s.transport.SendRequest(messages.MeterValuesFeatureName, request, func() messages.Response { return &messages.MeterValuesResponse{} })
	if err != nil {
		s.log.Warn("meter values for connector " + strconv.Itoa(s.connectorId) + " not delivered: " + err.Error())
	}
}

// samplesFor expands one template entry into its sampled values, gating on
// MeterValuesSampledData and dispatching to the measurand's own synthesis.
func (s *Sampler) samplesFor(tmpl station.MeterValueTemplate, connector *station.Connector, powerDivider int) []messages.SampledValue {
	measurand := measurandOrDefault(tmpl.Measurand)
	if !s.measurandEnabled(measurand) {
		return nil
	}
	unit := unitOrDefault(tmpl.Unit, measurand)
	maxPowerPerDivider := s.maxPowerW / float64(powerDivider)

	switch measurand {
	case messages.MeasurandEnergyActiveImportRegister:
		return []messages.SampledValue{s.energySample(tmpl, connector, maxPowerPerDivider, unit)}
	case messages.MeasurandPowerActiveImport:
		return s.powerSamples(tmpl, maxPowerPerDivider, unit)
	case messages.MeasurandCurrentImport:
		return s.currentSamples(tmpl, maxPowerPerDivider, unit)
	case messages.MeasurandVoltage:
		return s.voltageSamples(tmpl, unit)
	case messages.MeasurandSoC:
		return []messages.SampledValue{s.socSample(tmpl, unit)}
	default:
		return nil
	}
}

// measurandEnabled reports whether MeterValuesSampledData declares the
// given measurand. An absent or empty key imposes no restriction.
func (s *Sampler) measurandEnabled(measurand messages.Measurand) bool {
	if s.cs == nil {
		return true
	}
	entry, ok := s.cs.Get("MeterValuesSampledData", false)
	if !ok || strings.TrimSpace(entry.Value) == "" {
		return true
	}
	for _, declared := range strings.Split(entry.Value, ",") {
		if strings.EqualFold(strings.TrimSpace(declared), string(measurand)) {
			return true
		}
	}
	return false
}

// energySample never splits across phases. A template value overrides the
// synthesized delta; either way the overshoot against the per-interval
// ceiling is logged, not rejected.
func (s *Sampler) energySample(tmpl station.MeterValueTemplate, connector *station.Connector, maxPowerPerDivider float64, unit messages.UnitOfMeasure) messages.SampledValue {
	ceiling := maxPowerPerDivider * s.interval.Hours()
	var deltaWh float64
	if tmpl.Value != nil {
		deltaWh = *tmpl.Value
	} else {
		deltaWh = rand.Float64() * ceiling
	}
	if deltaWh > ceiling {
		s.log.Warn(fmt.Sprintf("connector %d: energy delta %.2f exceeds ceiling %.2f", s.connectorId, deltaWh, ceiling))
	}
	if connector.LastEnergyActiveImportRegisterValue < 0 {
		connector.LastEnergyActiveImportRegisterValue = 0
	}
	connector.LastEnergyActiveImportRegisterValue += int(deltaWh)
	return sampledValue(float64(connector.LastEnergyActiveImportRegisterValue), measurandEnergy, unit, "")
}

// powerSamples synthesizes Power.Active.Import. DC and single-phase AC
// report only the aggregate; three-phase AC emits the aggregate alongside
// three independently-randomized per-phase samples, tagged "L{n}-N".
func (s *Sampler) powerSamples(tmpl station.MeterValueTemplate, maxPowerPerDivider float64, unit messages.UnitOfMeasure) []messages.SampledValue {
	if tmpl.Value != nil {
		return []messages.SampledValue{sampledValue(*tmpl.Value, measurandPower, unit, "")}
	}
	if s.powerOutType == station.PowerOutDC || s.numberPhases < 3 {
		return []messages.SampledValue{sampledValue(rand.Float64()*maxPowerPerDivider, measurandPower, unit, "")}
	}
	perPhaseMax := maxPowerPerDivider / 3
	values := [3]float64{rand.Float64() * perPhaseMax, rand.Float64() * perPhaseMax, rand.Float64() * perPhaseMax}
	out := make([]messages.SampledValue, 0, 4)
	out = append(out, sampledValue(values[0]+values[1]+values[2], measurandPower, unit, ""))
	for i, v := range values {
		out = append(out, sampledValue(v, measurandPower, unit, phaseToNeutral(i+1)))
	}
	return out
}

// currentSamples synthesizes Current.Import. The aggregate is the
// arithmetic mean of the phase currents (not a sum), and phase tags are
// bare "L{n}" with no neutral suffix.
func (s *Sampler) currentSamples(tmpl station.MeterValueTemplate, maxPowerPerDivider float64, unit messages.UnitOfMeasure) []messages.SampledValue {
	if tmpl.Value != nil {
		return []messages.SampledValue{sampledValue(*tmpl.Value, measurandCurrent, unit, "")}
	}
	if s.powerOutType == station.PowerOutDC {
		maxAmperage := maxPowerPerDivider / s.voltageOut
		return []messages.SampledValue{sampledValue(rand.Float64()*maxAmperage, measurandCurrent, unit, "")}
	}
	if s.numberPhases < 3 {
		maxAmperage := maxPowerPerDivider / s.voltageOut
		return []messages.SampledValue{sampledValue(rand.Float64()*maxAmperage, measurandCurrent, unit, "")}
	}
	maxAmperagePerPhase := maxPowerPerDivider / (3 * s.voltageOut)
	values := [3]float64{rand.Float64() * maxAmperagePerPhase, rand.Float64() * maxAmperagePerPhase, rand.Float64() * maxAmperagePerPhase}
	out := make([]messages.SampledValue, 0, 4)
	out = append(out, sampledValue((values[0]+values[1]+values[2])/3, measurandCurrent, unit, ""))
	for i, v := range values {
		out = append(out, sampledValue(v, measurandCurrent, unit, phaseOnly(i+1)))
	}
	return out
}

// voltageSamples synthesizes Voltage within +-10% of voltageOut. Three-phase
// templates additionally report three independently-randomized per-phase
// samples, tagged "L{n}-N" at or below 250V and "L{n}-L{(n mod 3)+1}" above.
func (s *Sampler) voltageSamples(tmpl station.MeterValueTemplate, unit messages.UnitOfMeasure) []messages.SampledValue {
	if tmpl.Value != nil {
		return []messages.SampledValue{sampledValue(*tmpl.Value, measurandVoltage, unit, "")}
	}
	out := []messages.SampledValue{sampledValue(s.randomVoltage(), measurandVoltage, unit, "")}
	if s.numberPhases < 3 {
		return out
	}
	for n := 1; n <= 3; n++ {
		out = append(out, sampledValue(s.randomVoltage(), measurandVoltage, unit, voltagePhaseTag(n, s.voltageOut)))
	}
	return out
}

func (s *Sampler) randomVoltage() float64 {
	return s.voltageOut * (0.9 + rand.Float64()*0.2)
}

// socSample never splits across phases and is capped at 100.
func (s *Sampler) socSample(tmpl station.MeterValueTemplate, unit messages.UnitOfMeasure) messages.SampledValue {
	value := rand.Float64() * 100
	if tmpl.Value != nil {
		value = *tmpl.Value
	}
	if value > 100 {
		value = 100
	}
	return sampledValue(value, measurandSoC, unit, "")
}

const (
	measurandEnergy  = messages.MeasurandEnergyActiveImportRegister
	measurandPower   = messages.MeasurandPowerActiveImport
	measurandCurrent = messages.MeasurandCurrentImport
	measurandVoltage = messages.MeasurandVoltage
	measurandSoC     = messages.MeasurandSoC
)

func measurandOrDefault(m messages.Measurand) messages.Measurand {
	if m == "" {
		return measurandEnergy
	}
	return m
}

func unitOrDefault(u messages.UnitOfMeasure, measurand messages.Measurand) messages.UnitOfMeasure {
	if u != "" {
		return u
	}
	switch measurand {
	case measurandEnergy:
		return messages.UnitOfMeasureWh
	case measurandPower:
		return messages.UnitOfMeasureW
	case measurandCurrent:
		return messages.UnitOfMeasureA
	case measurandVoltage:
		return messages.UnitOfMeasureV
	case measurandSoC:
		return messages.UnitOfMeasurePercent
	default:
		return ""
	}
}

func phaseToNeutral(n int) messages.Phase {
	switch n {
	case 1:
		return messages.PhaseL1N
	case 2:
		return messages.PhaseL2N
	default:
		return messages.PhaseL3N
	}
}

func phaseOnly(n int) messages.Phase {
	switch n {
	case 1:
		return messages.PhaseL1
	case 2:
		return messages.PhaseL2
	default:
		return messages.PhaseL3
	}
}

// voltagePhaseTag reports the neutral tag at or below 250V and the
// line-to-line tag above it, per phase n in {1,2,3}.
func voltagePhaseTag(n int, voltageOut float64) messages.Phase {
	if voltageOut <= 250 {
		return phaseToNeutral(n)
	}
	switch n {
	case 1:
		return messages.PhaseL1L2
	case 2:
		return messages.PhaseL2L3
	default:
		return messages.PhaseL3L1
	}
}

func sampledValue(value float64, measurand messages.Measurand, unit messages.UnitOfMeasure, phase messages.Phase) messages.SampledValue {
	return messages.SampledValue{
		Value:     formatFloat(value),
		Context:   messages.ReadingContextSamplePeriodic,
		Measurand: measurand,
		Phase:     phase,
		Unit:      unit,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
