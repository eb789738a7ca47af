package station

import (
	"time"

	"cpsim/internal/messages"
)

// BeginTransaction marks a connector as occupied ahead of sending
// StartTransaction; the transaction id is not known until the response
// arrives, so TransactionStarted is set but TransactionId stays nil. The
// connector only moves to Charging once ApplyStartTransactionResponse sees
// an Accepted response — the caller is responsible for Preparing before
// this point.
func (s *Station) BeginTransaction(connectorId int, idTag string) *Connector {
	c := s.Connector(connectorId)
	if c == nil {
		return nil
	}
	c.TransactionStarted = true
	c.IdTag = &idTag
	c.LastEnergyActiveImportRegisterValue = 0
	return c
}

// StartTransactionRequest builds the request for a connector that already
// has BeginTransaction applied.
func (s *Station) StartTransactionRequest(connectorId int, idTag string, meterStart int) *messages.StartTransactionRequest {
	return &messages.StartTransactionRequest{
		ConnectorId: connectorId,
		IdTag:       idTag,
		MeterStart:  meterStart,
		Timestamp:   messages.NewDateTime(time.Now()),
	}
}

// ApplyStartTransactionResponse records the transaction id the central
// system assigned, or rolls back BeginTransaction if it rejected the tag.
func (s *Station) ApplyStartTransactionResponse(connectorId int, resp *messages.StartTransactionResponse) {
	c := s.Connector(connectorId)
	if c == nil {
		return
	}
	if resp.IdTagInfo != nil && resp.IdTagInfo.Status != messages.AuthorizationStatusAccepted {
		c.resetTransaction()
		c.SetStatus(messages.ChargePointStatusAvailable)
		return
	}
	id := resp.TransactionId
	c.TransactionId = &id
	c.SetStatus(messages.ChargePointStatusCharging)
}

// StopTransactionRequest builds the request to end connectorId's running
// transaction; the caller supplies the final register reading.
func (s *Station) StopTransactionRequest(connectorId int, meterStop int, reason messages.Reason) *messages.StopTransactionRequest {
	c := s.Connector(connectorId)
	if c == nil || c.TransactionId == nil {
		return nil
	}
	idTag := ""
	if c.IdTag != nil {
		idTag = *c.IdTag
	}
	return &messages.StopTransactionRequest{
		IdTag:         idTag,
		MeterStop:     meterStop,
		Timestamp:     messages.NewDateTime(time.Now()),
		TransactionId: *c.TransactionId,
		Reason:        reason,
	}
}

// ApplyStopTransactionResponse clears the connector's transaction state
// once the central system has acknowledged StopTransaction. The resulting
// status is Unavailable if either the connector itself or the station
// aggregate (connector 0) is INOPERATIVE, Available otherwise.
func (s *Station) ApplyStopTransactionResponse(connectorId int, resp *messages.StopTransactionResponse) {
	c := s.Connector(connectorId)
	if c == nil {
		return
	}
	c.resetTransaction()
	if s.stationOrConnectorInoperative(c) {
		c.SetStatus(messages.ChargePointStatusUnavailable)
	} else {
		c.SetStatus(messages.ChargePointStatusAvailable)
	}
}

func (s *Station) stationOrConnectorInoperative(c *Connector) bool {
	if c.Availability == AvailabilityInoperative {
		return true
	}
	c0 := s.Connector(0)
	return c0 != nil && c0.Availability == AvailabilityInoperative
}
