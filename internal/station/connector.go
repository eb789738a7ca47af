package station

import (
	"cpsim/internal/messages"
)

type Availability string

const (
	AvailabilityOperative   Availability = "Operative"
	AvailabilityInoperative Availability = "Inoperative"
)

// Sampler is the handle a Connector holds on its running meter sampling
// goroutine. The meter package implements it; station only needs to be
// able to stop one.
type Sampler interface {
	Stop()
}

// Connector is one physical outlet (id > 0) or the station aggregate (id 0).
type Connector struct {
	Id           int
	Availability Availability
	Status       messages.ChargePointStatus
	BootStatus   messages.ChargePointStatus

	TransactionStarted bool
	TransactionId      *int
	IdTag              *string

	// LastEnergyActiveImportRegisterValue is in Wh; -1 means uninitialised,
	// 0 on transaction start, accumulating while a transaction runs.
	LastEnergyActiveImportRegisterValue int

	ChargingProfiles []messages.ChargingProfile
	MeterValues      []MeterValueTemplate

	sampler  Sampler
	notifier StatusNotifier
}

// newConnector always starts a connector OPERATIVE with no charging
// profiles, regardless of what the template names: both are runtime state
// a central system establishes over the wire (ChangeAvailability,
// SetChargingProfile), not something a template may preseed.
func newConnector(id int, tmpl ConnectorTemplate) *Connector {
	c := &Connector{
		Id:           id,
		Availability: AvailabilityOperative,
		MeterValues:  append([]MeterValueTemplate{}, tmpl.MeterValues...),
	}
	if tmpl.BootStatus != "" {
		c.BootStatus = tmpl.BootStatus
		c.Status = tmpl.BootStatus
	} else {
		c.Status = messages.ChargePointStatusAvailable
	}
	c.initTransaction()
	return c
}

// initTransaction clears transaction fields to their "no transaction"
// state, used both at connector creation and whenever a transaction ends.
func (c *Connector) initTransaction() {
	c.TransactionStarted = false
	c.TransactionId = nil
	c.IdTag = nil
	c.LastEnergyActiveImportRegisterValue = -1
}

// resetTransaction clears the transaction fields and stops any running
// sampler; every path that ends a transaction — local stop, remote stop,
// unlock — must go through this.
func (c *Connector) resetTransaction() {
	c.initTransaction()
	if c.sampler != nil {
		c.sampler.Stop()
		c.sampler = nil
	}
}

func (c *Connector) SetSampler(s Sampler) {
	if c.sampler != nil {
		c.sampler.Stop()
	}
	c.sampler = s
}

func (c *Connector) HasActiveTransaction() bool {
	return c.TransactionStarted && c.TransactionId != nil
}

// SetStatus updates status and, if it actually changed, notifies the
// central system via the connector's StatusNotifier (if one is wired).
func (c *Connector) SetStatus(status messages.ChargePointStatus) {
	changed := c.Status != status
	c.Status = status
	if changed && c.notifier != nil {
		c.notifier.NotifyStatus(c.Id, status)
	}
}
