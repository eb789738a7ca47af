package station

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cpsim/internal/messages"
)

type recordingNotifier struct {
	connectorId int
	status      messages.ChargePointStatus
	calls       int
}

func (n *recordingNotifier) NotifyStatus(connectorId int, status messages.ChargePointStatus) {
	n.connectorId = connectorId
	n.status = status
	n.calls++
}

func TestNewConnectorDefaultsToAvailable(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{})
	assert.Equal(t, messages.ChargePointStatusAvailable, c.Status)
	assert.Equal(t, AvailabilityOperative, c.Availability)
}

func TestNewConnectorIgnoresTemplateAvailability(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{Availability: "Inoperative"})
	assert.Equal(t, AvailabilityOperative, c.Availability) // availability is wire state, never template-seeded
}

func TestNewConnectorHonorsTemplateBootStatus(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{BootStatus: messages.ChargePointStatusUnavailable})
	assert.Equal(t, messages.ChargePointStatusUnavailable, c.Status)
	assert.Equal(t, messages.ChargePointStatusUnavailable, c.BootStatus)
}

func TestNewConnectorIgnoresTemplateChargingProfiles(t *testing.T) {
	tmpl := ConnectorTemplate{ChargingProfiles: []messages.ChargingProfile{{ChargingProfileId: 1}}}
	c := newConnector(1, tmpl)
	assert.Empty(t, c.ChargingProfiles) // charging profiles are wire state, never template-seeded
}

func TestSetStatusNotifiesOnlyWhenChanged(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{})
	notifier := &recordingNotifier{}
	c.notifier = notifier

	c.SetStatus(messages.ChargePointStatusAvailable) // same as initial: no notification
	assert.Equal(t, 0, notifier.calls)

	c.SetStatus(messages.ChargePointStatusCharging)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, messages.ChargePointStatusCharging, notifier.status)
	assert.Equal(t, 1, notifier.connectorId)
}

func TestHasActiveTransactionRequiresBothFlagAndId(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{})
	assert.False(t, c.HasActiveTransaction())

	c.TransactionStarted = true
	assert.False(t, c.HasActiveTransaction()) // id not yet assigned

	id := 5
	c.TransactionId = &id
	assert.True(t, c.HasActiveTransaction())
}

type fakeSampler struct{ stopped int }

func (f *fakeSampler) Stop() { f.stopped++ }

func TestResetTransactionStopsSampler(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{})
	sampler := &fakeSampler{}
	c.SetSampler(sampler)

	c.resetTransaction()
	assert.Equal(t, 1, sampler.stopped)
	assert.False(t, c.TransactionStarted)
	assert.Nil(t, c.TransactionId)
	assert.Equal(t, -1, c.LastEnergyActiveImportRegisterValue)
}

func TestSetSamplerStopsPreviousSampler(t *testing.T) {
	c := newConnector(1, ConnectorTemplate{})
	first := &fakeSampler{}
	second := &fakeSampler{}

	c.SetSampler(first)
	c.SetSampler(second)
	assert.Equal(t, 1, first.stopped)
	assert.Equal(t, 0, second.stopped)
}
