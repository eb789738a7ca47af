package dispatch

import (
	"encoding/json"
	"fmt"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

// Dispatcher routes inbound central-system CALLs to the station's own
// state, and is installed on the RPC transport as its RequestHandler.
type Dispatcher struct {
	station  *station.Station
	cs       *configstore.Store
	log      logger.LogHandler
	authList *station.LocalAuthList

	onStartTransaction func(connectorId int, idTag string) (int, messages.AuthorizationStatus)
	onStopTransaction  func(transactionId int, reason messages.Reason) bool
	onReset            func(resetType messages.ResetType)
	onConfigChange     func(key string)
}

func NewDispatcher(st *station.Station, cs *configstore.Store, log logger.LogHandler) *Dispatcher {
	return &Dispatcher{station: st, cs: cs, log: log}
}

// SetLocalAuthList wires the authorized-tag list RemoteStartTransaction
// consults when AuthorizeRemoteTxRequests and LocalAuthListEnabled both
// apply and the list is non-empty.
func (d *Dispatcher) SetLocalAuthList(list *station.LocalAuthList) {
	d.authList = list
}

// SetTransactionHooks wires the callbacks that actually start/stop a
// transaction on a connector; the dispatcher itself only validates and
// translates remote-control requests into those calls.
func (d *Dispatcher) SetTransactionHooks(
	onStart func(connectorId int, idTag string) (int, messages.AuthorizationStatus),
	onStop func(transactionId int, reason messages.Reason) bool,
) {
	d.onStartTransaction = onStart
	d.onStopTransaction = onStop
}

// SetResetHook wires the callback that tears down and restarts the
// session connection when a Reset is requested.
func (d *Dispatcher) SetResetHook(onReset func(resetType messages.ResetType)) {
	d.onReset = onReset
}

// SetConfigChangeHook wires the callback run after ChangeConfiguration
// accepts a value, with the canonical key that changed; the session
// controller uses this to restart its heartbeat or ping timer.
func (d *Dispatcher) SetConfigChangeHook(onConfigChange func(key string)) {
	d.onConfigChange = onConfigChange
}

// Handle implements ocppj.RequestHandler: one inbound action in, one
// response or error out. Unrecognized actions fail with NotImplemented.
func (d *Dispatcher) Handle(action string, payload json.RawMessage) (messages.Response, error) {
	switch action {
	case messages.ResetFeatureName:
		return d.handleReset(payload)
	case messages.ClearCacheFeatureName:
		return d.handleClearCache(payload)
	case messages.UnlockConnectorFeatureName:
		return d.handleUnlockConnector(payload)
	case messages.GetConfigurationFeatureName:
		return d.handleGetConfiguration(payload)
	case messages.ChangeConfigurationFeatureName:
		return d.handleChangeConfiguration(payload)
	case messages.ChangeAvailabilityFeatureName:
		return d.handleChangeAvailability(payload)
	case messages.SetChargingProfileFeatureName:
		return d.handleSetChargingProfile(payload)
	case messages.ClearChargingProfileFeatureName:
		return d.handleClearChargingProfile(payload)
	case messages.RemoteStartTransactionFeatureName:
		return d.handleRemoteStartTransaction(payload)
	case messages.RemoteStopTransactionFeatureName:
		return d.handleRemoteStopTransaction(payload)
	default:
		return nil, ocppj.NewError(ocppj.ErrorNotImplemented, fmt.Sprintf("unsupported action: %s", action), nil)
	}
}

func unmarshal(payload json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return ocppj.NewError(ocppj.ErrorFormationViolation, err.Error(), nil)
	}
	return nil
}
