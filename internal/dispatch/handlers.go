package dispatch

import (
	"encoding/json"
	"strings"

	"cpsim/internal/configstore"
	"cpsim/internal/messages"
	"cpsim/internal/station"
)

func (d *Dispatcher) handleReset(payload json.RawMessage) (messages.Response, error) {
	var req messages.ResetRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if d.onReset != nil {
		go d.onReset(req.Type)
	}
	return messages.NewResetResponse(messages.ResetStatusAccepted), nil
}

// ClearCache always accepts: the authorization cache is not persisted, so
// there is nothing to clear beyond what already happens on every restart.
func (d *Dispatcher) handleClearCache(payload json.RawMessage) (messages.Response, error) {
	return messages.NewClearCacheResponse(messages.ClearCacheStatusAccepted), nil
}

// handleUnlockConnector stops whatever transaction is running on the
// connector through the same StopTransaction round-trip
// RemoteStopTransaction uses, tagged with the UnlockCommand reason, before
// unlocking; a failed round-trip leaves the connector's state untouched and
// reports UnlockFailed. UnlockConnector only ever targets a physical
// connector — id 0, the station aggregate, has nothing to unlock.
func (d *Dispatcher) handleUnlockConnector(payload json.RawMessage) (messages.Response, error) {
	var req messages.UnlockConnectorRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if req.ConnectorId == 0 {
		return messages.NewUnlockConnectorResponse(messages.UnlockStatusNotSupported), nil
	}
	connector := d.station.Connector(req.ConnectorId)
	if connector == nil {
		return messages.NewUnlockConnectorResponse(messages.UnlockStatusNotSupported), nil
	}
	if connector.HasActiveTransaction() {
		if d.onStopTransaction == nil || !d.onStopTransaction(*connector.TransactionId, messages.ReasonUnlockCommand) {
			return messages.NewUnlockConnectorResponse(messages.UnlockStatusUnlockFailed), nil
		}
	}
	connector.SetStatus(messages.ChargePointStatusAvailable)
	return messages.NewUnlockConnectorResponse(messages.UnlockStatusUnlocked), nil
}

func (d *Dispatcher) handleGetConfiguration(payload json.RawMessage) (messages.Response, error) {
	var req messages.GetConfigurationRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}

	response := &messages.GetConfigurationResponse{}
	if len(req.Key) == 0 {
		for _, entry := range d.cs.All() {
			response.ConfigurationKey = append(response.ConfigurationKey, configurationKeyValue(entry))
		}
		return response, nil
	}

	found, unknown := d.cs.Lookup(req.Key)
	for _, entry := range found {
		response.ConfigurationKey = append(response.ConfigurationKey, configurationKeyValue(entry))
	}
	response.UnknownKey = unknown
	return response, nil
}

func configurationKeyValue(entry configstore.Entry) messages.ConfigurationKeyValue {
	value := entry.Value
	return messages.ConfigurationKeyValue{Key: entry.Key, Readonly: entry.Readonly, Value: &value}
}

// handleChangeConfiguration applies a key/value pair, mirroring
// HeartbeatInterval and HeartBeatInterval so either spelling of the key a
// central system uses takes effect.
func (d *Dispatcher) handleChangeConfiguration(payload json.RawMessage) (messages.Response, error) {
	var req messages.ChangeConfigurationRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}

	entry, ok := d.cs.Get(req.Key, true)
	if !ok {
		return messages.NewChangeConfigurationResponse(messages.ConfigurationStatusNotSupported), nil
	}
	if entry.Readonly {
		return messages.NewChangeConfigurationResponse(messages.ConfigurationStatusRejected), nil
	}

	d.cs.Set(entry.Key, req.Value)
	if strings.EqualFold(entry.Key, "HeartbeatInterval") || strings.EqualFold(entry.Key, "HeartBeatInterval") {
		for _, key := range []string{"HeartbeatInterval", "HeartBeatInterval"} {
			if mirrored, ok := d.cs.Get(key, false); ok {
				d.cs.Set(mirrored.Key, req.Value)
			}
		}
	}
	if d.onConfigChange != nil {
		d.onConfigChange(entry.Key)
	}

	if entry.Reboot {
		return messages.NewChangeConfigurationResponse(messages.ConfigurationStatusRebootRequired), nil
	}
	return messages.NewChangeConfigurationResponse(messages.ConfigurationStatusAccepted), nil
}

func (d *Dispatcher) handleChangeAvailability(payload json.RawMessage) (messages.Response, error) {
	var req messages.ChangeAvailabilityRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}

	var targets []*station.Connector
	if req.ConnectorId == 0 {
		for id, c := range d.station.Connectors {
			if id != 0 {
				targets = append(targets, c)
			}
		}
	} else {
		c := d.station.Connector(req.ConnectorId)
		if c == nil {
			return messages.NewChangeAvailabilityResponse(messages.AvailabilityStatusRejected), nil
		}
		// A connector-level change is only honoured while the station
		// itself is OPERATIVE, or when the station is INOPERATIVE and the
		// request is itself setting INOPERATIVE (no-op agreement).
		if c0 := d.station.Connector(0); c0 != nil && c0.Availability == station.AvailabilityInoperative &&
			req.Type != messages.AvailabilityTypeInoperative {
			return messages.NewChangeAvailabilityResponse(messages.AvailabilityStatusRejected), nil
		}
		targets = append(targets, c)
	}

	availability := station.AvailabilityOperative
	status := messages.ChargePointStatusAvailable
	if req.Type == messages.AvailabilityTypeInoperative {
		availability = station.AvailabilityInoperative
		status = messages.ChargePointStatusUnavailable
	}

	scheduled := false
	for _, c := range targets {
		c.Availability = availability
		if c.HasActiveTransaction() {
			scheduled = true
			continue
		}
		c.SetStatus(status)
	}
	if scheduled {
		return messages.NewChangeAvailabilityResponse(messages.AvailabilityStatusScheduled), nil
	}
	return messages.NewChangeAvailabilityResponse(messages.AvailabilityStatusAccepted), nil
}

func (d *Dispatcher) handleSetChargingProfile(payload json.RawMessage) (messages.Response, error) {
	var req messages.SetChargingProfileRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}
	if req.ChargingProfile == nil {
		return messages.NewSetChargingProfileResponse(messages.ChargingProfileStatusRejected), nil
	}
	if !d.chargingProfilePlacementValid(req.ConnectorId, *req.ChargingProfile) {
		return messages.NewSetChargingProfileResponse(messages.ChargingProfileStatusRejected), nil
	}

	var targets []*station.Connector
	if req.ConnectorId == 0 {
		for id, c := range d.station.Connectors {
			if id != 0 {
				targets = append(targets, c)
			}
		}
	} else {
		c := d.station.Connector(req.ConnectorId)
		if c == nil {
			return messages.NewSetChargingProfileResponse(messages.ChargingProfileStatusRejected), nil
		}
		targets = append(targets, c)
	}

	for _, c := range targets {
		station.UpsertChargingProfile(c, *req.ChargingProfile)
	}
	return messages.NewSetChargingProfileResponse(messages.ChargingProfileStatusAccepted), nil
}

// chargingProfilePlacementValid enforces the purpose/connector coupling the
// OCPP 1.6 schema requires: a ChargePointMaxProfile only ever targets the
// whole charge point (connectorId 0), and a TxProfile only ever targets a
// physical connector with a transaction actually running on it.
// TxDefaultProfile carries no such restriction.
func (d *Dispatcher) chargingProfilePlacementValid(connectorId int, profile messages.ChargingProfile) bool {
	switch profile.ChargingProfilePurpose {
	case messages.ChargingProfilePurposeChargePointMaxProfile:
		return connectorId == 0
	case messages.ChargingProfilePurposeTxProfile:
		if connectorId == 0 {
			return false
		}
		c := d.station.Connector(connectorId)
		return c != nil && c.HasActiveTransaction()
	default:
		return true
	}
}

// handleClearChargingProfile: a connectorId clears everything on that
// connector outright; with no connectorId, every connector is scanned and
// only profiles matching the id/stackLevel/purpose filter are removed.
func (d *Dispatcher) handleClearChargingProfile(payload json.RawMessage) (messages.Response, error) {
	var req messages.ClearChargingProfileRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}

	removed := 0
	if req.ConnectorId != nil {
		if c := d.station.Connector(*req.ConnectorId); c != nil {
			removed = len(c.ChargingProfiles)
			c.ChargingProfiles = nil
		}
	} else {
		filter := station.ClearChargingProfileFilter{
			Id:         req.Id,
			StackLevel: req.StackLevel,
			Purpose:    req.ChargingProfilePurpose,
		}
		for _, c := range d.station.Connectors {
			removed += station.ClearChargingProfiles(c, filter)
		}
	}

	if removed == 0 {
		return messages.NewClearChargingProfileResponse(messages.ClearChargingProfileStatusUnknown), nil
	}
	return messages.NewClearChargingProfileResponse(messages.ClearChargingProfileStatusAccepted), nil
}

// handleRemoteStartTransaction validates the request synchronously —
// connector and station availability, the local auth list, and the
// optional chargingProfile's purpose — and answers Accepted/Rejected from
// those guards alone. The actual StartTransaction round trip (and the
// StatusNotification(Preparing) ahead of it) runs in a detached goroutine
// afterward, exactly like handleReset's onReset dispatch: a central system
// expects the CALLRESULT before any further CALL this request triggers,
// and the round trip can itself suspend on the wire for the RPC timeout.
func (d *Dispatcher) handleRemoteStartTransaction(payload json.RawMessage) (messages.Response, error) {
	var req messages.RemoteStartTransactionRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}

	connectorId := 1
	if req.ConnectorId != nil {
		connectorId = *req.ConnectorId
	}
	connector := d.station.Connector(connectorId)
	if connector == nil || connector.HasActiveTransaction() || d.onStartTransaction == nil {
		return messages.NewRemoteStartTransactionResponse(messages.RemoteStartStopStatusRejected), nil
	}
	if !d.stationAndConnectorAvailable(connectorId) {
		return messages.NewRemoteStartTransactionResponse(messages.RemoteStartStopStatusRejected), nil
	}
	if d.localAuthListBlocks(req.IdTag) {
		return messages.NewRemoteStartTransactionResponse(messages.RemoteStartStopStatusRejected), nil
	}
	if req.ChargingProfile != nil && req.ChargingProfile.ChargingProfilePurpose != messages.ChargingProfilePurposeTxProfile {
		return messages.NewRemoteStartTransactionResponse(messages.RemoteStartStopStatusRejected), nil
	}

	go d.runRemoteStart(connectorId, req)
	return messages.NewRemoteStartTransactionResponse(messages.RemoteStartStopStatusAccepted), nil
}

// runRemoteStart carries out the actual start after RemoteStartTransaction
// has already answered Accepted: it attaches the optional chargingProfile,
// emits Preparing, and runs StartTransaction. ApplyStartTransactionResponse
// (invoked inside onStartTransaction) is what emits Charging or rolls the
// connector back to Available, depending on the outcome.
func (d *Dispatcher) runRemoteStart(connectorId int, req messages.RemoteStartTransactionRequest) {
	connector := d.station.Connector(connectorId)
	if connector == nil {
		return
	}
	if req.ChargingProfile != nil {
		station.UpsertChargingProfile(connector, *req.ChargingProfile)
	}
	connector.SetStatus(messages.ChargePointStatusPreparing)
	d.onStartTransaction(connectorId, req.IdTag)
}

// stationAndConnectorAvailable reports whether connectorId may accept a
// RemoteStartTransaction: both it and the station aggregate (connector 0)
// must be OPERATIVE.
func (d *Dispatcher) stationAndConnectorAvailable(connectorId int) bool {
	connector := d.station.Connector(connectorId)
	if connector == nil || connector.Availability != station.AvailabilityOperative {
		return false
	}
	if c0 := d.station.Connector(0); c0 != nil && c0.Availability != station.AvailabilityOperative {
		return false
	}
	return true
}

// localAuthListBlocks reports whether RemoteStartTransaction must be
// rejected on local-list grounds: only when the station both requires
// authorization for remote requests and has a non-empty local list loaded,
// and the given idTag isn't on it.
func (d *Dispatcher) localAuthListBlocks(idTag string) bool {
	if !d.configFlag("AuthorizeRemoteTxRequests") || !d.configFlag("LocalAuthListEnabled") || d.authList.Len() == 0 {
		return false
	}
	return !d.authList.Contains(idTag)
}

func (d *Dispatcher) configFlag(key string) bool {
	entry, ok := d.cs.Get(key, false)
	return ok && entry.Value == "true"
}

// handleRemoteStopTransaction answers from its one guard — a connector
// actually running transactionId — alone, then runs Finishing + the
// StopTransaction round trip in a detached goroutine, for the same reason
// handleRemoteStartTransaction does: the CALLRESULT must precede any
// further CALL the request triggers.
func (d *Dispatcher) handleRemoteStopTransaction(payload json.RawMessage) (messages.Response, error) {
	var req messages.RemoteStopTransactionRequest
	if err := unmarshal(payload, &req); err != nil {
		return nil, err
	}
	connector := d.station.ConnectorByTransaction(req.TransactionId)
	if connector == nil || d.onStopTransaction == nil {
		return messages.NewRemoteStopTransactionResponse(messages.RemoteStartStopStatusRejected), nil
	}
	go func() {
		connector.SetStatus(messages.ChargePointStatusFinishing)
		d.onStopTransaction(req.TransactionId, messages.ReasonRemote)
	}()
	return messages.NewRemoteStopTransactionResponse(messages.RemoteStartStopStatusAccepted), nil
}
