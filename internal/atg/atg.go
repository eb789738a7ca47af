// Package atg drives the Automatic Transaction Generator: once enabled on
// a connector it alternates idle delays and transactions of randomized
// duration, without any external trigger, mirroring what a real EV driver
// arriving and leaving would produce.
package atg

import (
	"fmt"
	"math/rand"
	"time"

	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/station"
)

const featureName = "AutomaticTransactionGenerator"

// TransactionManager is the subset of txn.Manager the generator drives.
type TransactionManager interface {
	StartTransaction(connectorId int, idTag string) (int, messages.AuthorizationStatus)
	StopTransaction(transactionId int, reason messages.Reason) bool
}

// Generator runs one goroutine per enabled connector, cycling between an
// idle wait and a running transaction on its own schedule.
type Generator struct {
	station *station.Station
	tmpl    station.AutomaticTransactionGeneratorTemplate
	txn     TransactionManager
	log     logger.LogHandler

	stop chan struct{}
}

func NewGenerator(st *station.Station, tmpl station.AutomaticTransactionGeneratorTemplate, txn TransactionManager, log logger.LogHandler) *Generator {
	return &Generator{station: st, tmpl: tmpl, txn: txn, log: log, stop: make(chan struct{})}
}

// Start launches one cycling goroutine per connector, skipping connector 0.
// It is a no-op if the template did not enable the generator.
func (g *Generator) Start() {
	if !g.tmpl.Enable {
		return
	}
	for id := range g.station.Connectors {
		if id == 0 {
			continue
		}
		go g.run(id)
	}
}

func (g *Generator) Stop() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
}

func (g *Generator) run(connectorId int) {
	for {
		if !g.wait(g.randomDuration(g.tmpl.MinDelayMs, g.tmpl.MaxDelayMs)) {
			return
		}

		connector := g.station.Connector(connectorId)
		if connector == nil || connector.HasActiveTransaction() || connector.Availability != station.AvailabilityOperative {
			continue
		}

		idTag := fmt.Sprintf("ATG%06d", rand.Intn(1000000))
		transactionId, status := g.txn.StartTransaction(connectorId, idTag)
		if status != messages.AuthorizationStatusAccepted {
			g.log.FeatureEvent(featureName, "", fmt.Sprintf("connector %d: start rejected: %s", connectorId, status))
			continue
		}

		if !g.wait(g.randomDuration(g.tmpl.MinDurationMs, g.tmpl.MaxDurationMs)) {
			g.txn.StopTransaction(transactionId, messages.ReasonLocal)
			return
		}
		g.txn.StopTransaction(transactionId, messages.ReasonLocal)
	}
}

func (g *Generator) wait(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-g.stop:
		return false
	}
}

func (g *Generator) randomDuration(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	span := maxMs - minMs
	return time.Duration(minMs+rand.Intn(span)) * time.Millisecond
}
