package station

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
)

// Station is one simulated charging station: its identity, its connector
// table, and the derived values (power divider) that depend on both.
type Station struct {
	ChargingStationId string
	Template          *StationTemplate
	Connectors        map[int]*Connector

	HasStopped              bool
	HasSocketRestarted      bool
	AutoReconnectRetryCount int
	BootResponse            *messages.BootNotificationResponse

	connectorTableHash [32]byte
	notifier           StatusNotifier

	log logger.LogHandler
}

// NewStation derives a station id and builds its initial connector table
// from tmpl.
//
//	fixedName  -> baseName
//	otherwise  -> baseName + "-" + instanceIndex + zero-padded(index) + nameSuffix
//
// instanceIndex comes from CF_INSTANCE_INDEX, mirroring the platform
// convention of letting the runtime assign per-instance identity.
func NewStation(tmpl *StationTemplate, index int, cs *configstore.Store, log logger.LogHandler) *Station {
	s := &Station{
		ChargingStationId: stationId(tmpl, index),
		Template:          tmpl,
		log:               log,
	}
	s.buildConnectors(tmpl, index, cs)
	return s
}

func stationId(tmpl *StationTemplate, index int) string {
	if tmpl.FixedName {
		return tmpl.BaseName
	}
	instance := os.Getenv("CF_INSTANCE_INDEX")
	return fmt.Sprintf("%s-%s%04d%s", tmpl.BaseName, instance, index, tmpl.NameSuffix)
}

// buildConnectors builds connector ids 0..count from tmpl.Connectors,
// honoring UseConnectorId0 and RandomConnectors.
//
// The randomized assignment is run through a hash comparison against the
// previous table (if any) so a template reload that produces the *same*
// effective connector set does not discard in-flight transaction state.
func (s *Station) buildConnectors(tmpl *StationTemplate, index int, cs *configstore.Store) {
	count := int(tmpl.NumberOfConnectors.At(index))
	templates := make([]int, 0, len(tmpl.Connectors))
	for id := range tmpl.Connectors {
		templates = append(templates, id)
	}

	assign := func(connectorId int) ConnectorTemplate {
		if len(templates) == 0 {
			return ConnectorTemplate{}
		}
		if tmpl.RandomConnectors {
			return tmpl.Connectors[templates[rand.Intn(len(templates))]]
		}
		if t, ok := tmpl.Connectors[connectorId]; ok {
			return t
		}
		return tmpl.Connectors[templates[0]]
	}

	next := make(map[int]*Connector, count+1)
	if tmpl.UseConnectorId0Default() {
		next[0] = newConnector(0, assign(0))
	}
	for id := 1; id <= count; id++ {
		next[id] = newConnector(id, assign(id))
	}
	for _, c := range next {
		c.notifier = s.notifier
	}

	hash := hashConnectorTable(tmpl, count)
	if s.Connectors != nil && hash == s.connectorTableHash {
		return
	}
	s.Connectors = next
	s.connectorTableHash = hash

	if cs != nil {
		if entry, ok := cs.Get("NumberOfConnectors", false); ok {
			cs.Set(entry.Key, fmt.Sprintf("%d", count))
		} else {
			cs.Add("NumberOfConnectors", fmt.Sprintf("%d", count), true, true, false)
		}
	}
}

// hashConnectorTable summarizes the parts of the template that determine
// connector shape, so ReloadTemplate can detect "nothing that matters changed".
func hashConnectorTable(tmpl *StationTemplate, count int) [32]byte {
	b, _ := json.Marshal(struct {
		Count      int
		Connectors map[int]ConnectorTemplate
		UseId0     bool
		Random     bool
	}{count, tmpl.Connectors, tmpl.UseConnectorId0Default(), tmpl.RandomConnectors})
	return sha256.Sum256(b)
}

// ReloadTemplate rebuilds the connector table from an updated template,
// preserving existing Connector state (and thus any running transaction)
// when the effective shape is unchanged. This is the entry point a
// cmd-level template file watcher calls; the core itself never touches the
// filesystem.
func (s *Station) ReloadTemplate(tmpl *StationTemplate, index int, cs *configstore.Store) {
	s.Template = tmpl
	s.buildConnectors(tmpl, index, cs)
}

// PowerDivider computes how many connectors a shared power budget is split
// across. When PowerSharedByConnectors is set, only connectors with an
// active transaction count; otherwise every connector counts. A return of
// 0 means undefined (no connectors, or no running transactions while
// shared) — the caller must fail the sampling tick rather than divide.
func (s *Station) PowerDivider() int {
	divider := 0
	if !s.Template.PowerSharedByConnectors {
		for id := range s.Connectors {
			if id != 0 {
				divider++
			}
		}
		return divider
	}
	for id, c := range s.Connectors {
		if id != 0 && c.HasActiveTransaction() {
			divider++
		}
	}
	return divider
}

// Connector looks up a connector by id, nil if absent.
func (s *Station) Connector(id int) *Connector {
	return s.Connectors[id]
}

// SetNotifier wires the StatusNotifier onto the station and every existing
// connector; buildConnectors propagates it to connectors created by a
// later ReloadTemplate too.
func (s *Station) SetNotifier(n StatusNotifier) {
	s.notifier = n
	for _, c := range s.Connectors {
		c.notifier = n
	}
}

// NotifyBootStatuses reports every physical connector's current status,
// unconditionally, as required right after a successful boot handshake.
func (s *Station) NotifyBootStatuses() {
	if s.notifier == nil {
		return
	}
	for id, c := range s.Connectors {
		if id != 0 {
			s.notifier.NotifyStatus(id, c.Status)
		}
	}
}

// SetBootResponse records the Accepted BootNotification response in the
// station's BootResponse field (no handler reads it); ClearBootResponse
// wipes it on stop, matching the source's own
// discard-on-stop behavior so a stale Accepted response can't survive past
// a shutdown that never re-registered.
func (s *Station) SetBootResponse(resp *messages.BootNotificationResponse) {
	s.BootResponse = resp
}

func (s *Station) ClearBootResponse() {
	s.BootResponse = nil
}

// MarkStopped runs the connector-facing half of the authoritative stop
// path: every physical connector reports Unavailable, and HasStopped is
// set so a subsequent Reset's start() knows to clear it again. The caller
// is responsible for tearing down timers, the transaction generator and
// the socket itself before or after calling this; MarkStopped only touches
// connector state and station flags.
func (s *Station) MarkStopped() {
	for id, c := range s.Connectors {
		if id != 0 {
			c.SetStatus(messages.ChargePointStatusUnavailable)
		}
	}
	s.ClearBootResponse()
	s.HasStopped = true
}

// MarkStarted clears the stopped flag a subsequent Run/boot handshake
// needs cleared before it can register again.
func (s *Station) MarkStarted() {
	s.HasStopped = false
}

// ConnectorByTransaction finds the connector currently running the given
// transaction id, nil if none match.
func (s *Station) ConnectorByTransaction(transactionId int) *Connector {
	for _, c := range s.Connectors {
		if c.TransactionId != nil && *c.TransactionId == transactionId {
			return c
		}
	}
	return nil
}

// BootNotificationRequest builds the request this station sends on every
// boot handshake attempt, derived from its template.
func (s *Station) BootNotificationRequest() *messages.BootNotificationRequest {
	return &messages.BootNotificationRequest{
		ChargePointVendor:       s.Template.ChargePointVendor,
		ChargePointModel:        s.Template.ChargePointModel,
		ChargeBoxSerialNumber:   s.Template.ChargeBoxSerialNumberPrefix + s.ChargingStationId,
		FirmwareVersion:         s.Template.FirmwareVersion,
	}
}
