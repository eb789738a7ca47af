package station

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
)

func testLog() logger.LogHandler {
	return logger.NewLogger(nil)
}

func TestStationIdFixedName(t *testing.T) {
	tmpl := &StationTemplate{BaseName: "CP", FixedName: true, NameSuffix: "-x"}
	assert.Equal(t, "CP", stationId(tmpl, 3))
}

func TestStationIdGeneratedName(t *testing.T) {
	tmpl := &StationTemplate{BaseName: "CP", NameSuffix: "-x"}
	id := stationId(tmpl, 3)
	assert.Equal(t, "CP-0003-x", id)
}

func TestNewStationBuildsConnectors(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{2},
	}
	cs := configstore.NewStore(testLog())
	st := NewStation(tmpl, 0, cs, testLog())

	assert.Len(t, st.Connectors, 3) // connector 0 plus 2 physical connectors
	assert.NotNil(t, st.Connector(0))
	assert.NotNil(t, st.Connector(1))
	assert.NotNil(t, st.Connector(2))
	assert.Nil(t, st.Connector(3))

	entry, ok := cs.Get("NumberOfConnectors", false)
	assert.True(t, ok)
	assert.Equal(t, "2", entry.Value)
}

func TestNewStationSkipsConnectorZeroWhenDisabled(t *testing.T) {
	disabled := false
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{1},
		UseConnectorId0:    &disabled,
	}
	st := NewStation(tmpl, 0, configstore.NewStore(testLog()), testLog())
	assert.Nil(t, st.Connector(0))
	assert.NotNil(t, st.Connector(1))
}

func TestReloadPreservesStateWhenShapeUnchanged(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{1},
	}
	cs := configstore.NewStore(testLog())
	st := NewStation(tmpl, 0, cs, testLog())

	connector := st.Connector(1)
	connector.Status = "Charging"

	st.ReloadTemplate(tmpl, 0, cs)
	assert.Same(t, connector, st.Connector(1))
	assert.EqualValues(t, "Charging", st.Connector(1).Status)
}

func TestReloadRebuildsWhenShapeChanges(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{1},
	}
	cs := configstore.NewStore(testLog())
	st := NewStation(tmpl, 0, cs, testLog())
	original := st.Connector(1)

	grown := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{2},
	}
	st.ReloadTemplate(grown, 0, cs)

	assert.NotSame(t, original, st.Connector(1))
	assert.NotNil(t, st.Connector(2))
}

func TestPowerDividerCountsAllConnectorsByDefault(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{3},
	}
	st := NewStation(tmpl, 0, configstore.NewStore(testLog()), testLog())
	assert.Equal(t, 3, st.PowerDivider())
}

func TestPowerDividerCountsOnlyActiveTransactionsWhenShared(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:                "CP",
		FixedName:               true,
		NumberOfConnectors:      RawNumberOrSlice{3},
		PowerSharedByConnectors: true,
	}
	st := NewStation(tmpl, 0, configstore.NewStore(testLog()), testLog())
	assert.Equal(t, 0, st.PowerDivider()) // no active transactions: undefined

	st.BeginTransaction(1, "tag-1")
	st.ApplyStartTransactionResponse(1, &messages.StartTransactionResponse{
		TransactionId: 1,
		IdTagInfo:     &messages.IdTagInfo{Status: messages.AuthorizationStatusAccepted},
	})
	st.BeginTransaction(2, "tag-2")
	st.ApplyStartTransactionResponse(2, &messages.StartTransactionResponse{
		TransactionId: 2,
		IdTagInfo:     &messages.IdTagInfo{Status: messages.AuthorizationStatusAccepted},
	})
	assert.Equal(t, 2, st.PowerDivider())
}

func TestConnectorByTransaction(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: RawNumberOrSlice{2},
	}
	st := NewStation(tmpl, 0, configstore.NewStore(testLog()), testLog())
	st.BeginTransaction(1, "tag")
	transactionId := 42
	st.Connector(1).TransactionId = &transactionId

	assert.Same(t, st.Connector(1), st.ConnectorByTransaction(42))
	assert.Nil(t, st.ConnectorByTransaction(99))
}

func TestBootNotificationRequest(t *testing.T) {
	tmpl := &StationTemplate{
		BaseName:                    "CP",
		FixedName:                   true,
		ChargePointVendor:           "Acme",
		ChargePointModel:            "Zap2000",
		ChargeBoxSerialNumberPrefix: "SN-",
		FirmwareVersion:             "1.0.0",
		NumberOfConnectors:          RawNumberOrSlice{1},
	}
	st := NewStation(tmpl, 0, configstore.NewStore(testLog()), testLog())

	req := st.BootNotificationRequest()
	assert.Equal(t, "Acme", req.ChargePointVendor)
	assert.Equal(t, "Zap2000", req.ChargePointModel)
	assert.Equal(t, "SN-CP", req.ChargeBoxSerialNumber)
	assert.Equal(t, "1.0.0", req.FirmwareVersion)
}
