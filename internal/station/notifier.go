package station

import "cpsim/internal/messages"

// StatusNotifier is how a Connector reports a status change to the central
// system. The session/transport layer implements it; station itself knows
// nothing about the wire.
type StatusNotifier interface {
	NotifyStatus(connectorId int, status messages.ChargePointStatus)
}
