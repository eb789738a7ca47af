// Package txn orchestrates the station-originated call sequences that back
// a remote start/stop: Authorize (when required), StartTransaction or
// StopTransaction, and starting/stopping that connector's Meter Sampler.
package txn

import (
	"strconv"
	"time"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/meter"
	"cpsim/internal/messages"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

const defaultSampleInterval = 60 * time.Second

// Manager ties a Station to the transport and template values a
// transaction needs but that Station itself has no reason to hold:
// the RPC transport, the per-connector power/phase figures, and the
// sample-interval configuration key.
type Manager struct {
	station   *station.Station
	tmpl      *station.StationTemplate
	transport *ocppj.Transport
	cs        *configstore.Store
	log       logger.LogHandler
}

func NewManager(st *station.Station, tmpl *station.StationTemplate, transport *ocppj.Transport, cs *configstore.Store, log logger.LogHandler) *Manager {
	return &Manager{station: st, tmpl: tmpl, transport: transport, cs: cs, log: log}
}

// StartTransaction authorizes (if the template requires it for remote
// requests), sends StartTransaction, and on acceptance starts a Meter
// Sampler for the connector. It implements the dispatcher's
// onStartTransaction hook.
func (m *Manager) StartTransaction(connectorId int, idTag string) (int, messages.AuthorizationStatus) {
	if m.tmpl.AuthorizeRemoteTxRequests {
		status := m.authorize(idTag)
		if status != messages.AuthorizationStatusAccepted {
			// Roll the connector back exactly as a rejected StartTransaction would.
			m.station.ApplyStartTransactionResponse(connectorId, &messages.StartTransactionResponse{IdTagInfo: messages.NewIdTagInfo(status)})
			return 0, status
		}
	}

	connector := m.station.BeginTransaction(connectorId, idTag)
	if connector == nil {
		return 0, messages.AuthorizationStatusInvalid
	}

	req := m.station.StartTransactionRequest(connectorId, idTag, connector.LastEnergyActiveImportRegisterValue)
	response, _, err := m.transport.SendRequest(messages.StartTransactionFeatureName, req, func() messages.Response { return &messages.StartTransactionResponse{} })
	if err != nil {
		m.log.Error("start transaction", err)
		m.station.ApplyStartTransactionResponse(connectorId, &messages.StartTransactionResponse{IdTagInfo: messages.NewIdTagInfo(messages.AuthorizationStatusInvalid)})
		return 0, messages.AuthorizationStatusInvalid
	}

	resp := response.(*messages.StartTransactionResponse)
	m.station.ApplyStartTransactionResponse(connectorId, resp)
	if resp.IdTagInfo != nil && resp.IdTagInfo.Status != messages.AuthorizationStatusAccepted {
		return 0, resp.IdTagInfo.Status
	}

	m.startSampler(connectorId)
	return resp.TransactionId, messages.AuthorizationStatusAccepted
}

// StopTransaction sends StopTransaction for the connector owning
// transactionId and stops its Meter Sampler. It implements the
// dispatcher's onStopTransaction hook.
func (m *Manager) StopTransaction(transactionId int, reason messages.Reason) bool {
	connector := m.station.ConnectorByTransaction(transactionId)
	if connector == nil {
		return false
	}

	req := m.station.StopTransactionRequest(connector.Id, connector.LastEnergyActiveImportRegisterValue, reason)
	if req == nil {
		return false
	}
	response, _, err := m.transport.SendRequest(messages.StopTransactionFeatureName, req, func() messages.Response { return &messages.StopTransactionResponse{} })
	if err != nil {
		m.log.Error("stop transaction", err)
		return false
	}

	m.station.ApplyStopTransactionResponse(connector.Id, response.(*messages.StopTransactionResponse))
	return true
}

func (m *Manager) authorize(idTag string) messages.AuthorizationStatus {
	response, _, err := m.transport.SendRequest(messages.AuthorizeFeatureName, messages.NewAuthorizeRequest(idTag), func() messages.Response { return &messages.AuthorizeResponse{} })
	if err != nil {
		m.log.Error("authorize", err)
		return messages.AuthorizationStatusInvalid
	}
	resp := response.(*messages.AuthorizeResponse)
	if resp.IdTagInfo == nil {
		return messages.AuthorizationStatusInvalid
	}
	return resp.IdTagInfo.Status
}

func (m *Manager) startSampler(connectorId int) {
	connector := m.station.Connector(connectorId)
	if connector == nil {
		return
	}
	index := connectorId
	if index >= len(m.tmpl.Power) {
		index = 0
	}
	maxPowerW := m.tmpl.Power.At(index) * 1000
	sampler := meter.NewSampler(connectorId, m.station, m.transport, m.cs, m.sampleInterval(), maxPowerW, m.tmpl.NumberOfPhases, m.tmpl.VoltageOut, m.tmpl.PowerOutType, m.log)
	connector.SetSampler(sampler)
	sampler.Start()
}

func (m *Manager) sampleInterval() time.Duration {
	if entry, ok := m.cs.Get("MeterValueSampleInterval", false); ok {
		if n, err := strconv.Atoi(entry.Value); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultSampleInterval
}

// NotifyStatus implements station.StatusNotifier: every connector status
// change becomes a StatusNotification CALL, sent fire-and-forget so a
// status change is never held up waiting on the central system.
func (m *Manager) NotifyStatus(connectorId int, status messages.ChargePointStatus) {
	req := messages.NewStatusNotificationRequest(connectorId, status, messages.NoError)
	go func() {
		_, _, err := m.transport.SendRequest(messages.StatusNotificationFeatureName, req, func() messages.Response { return &messages.StatusNotificationResponse{} })
		if err != nil {
			m.log.Warn("status notification for connector " + strconv.Itoa(connectorId) + " not delivered: " + err.Error())
		}
	}()
}
