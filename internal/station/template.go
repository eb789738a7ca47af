package station

import "cpsim/internal/messages"

// PowerOutType is the station's physical supply, AC or DC.
type PowerOutType string

const (
	PowerOutAC PowerOutType = "AC"
	PowerOutDC PowerOutType = "DC"
)

// ConnectorTemplate is one entry of the template's Connectors map.
type ConnectorTemplate struct {
	Availability     string                     `json:"availability,omitempty"`
	BootStatus       messages.ChargePointStatus  `json:"bootStatus,omitempty"`
	MeterValues      []MeterValueTemplate        `json:"MeterValues,omitempty"`
	ChargingProfiles []messages.ChargingProfile  `json:"chargingProfiles,omitempty"`
}

// MeterValueTemplate describes one sample the Meter Sampler should emit per
// tick: which measurand, what unit, and an optional fixed value that
// overrides the synthesised random one.
type MeterValueTemplate struct {
	Measurand messages.Measurand     `json:"measurand,omitempty"`
	Unit      messages.UnitOfMeasure `json:"unit,omitempty"`
	Value     *float64               `json:"value,omitempty"`
}

// AutomaticTransactionGeneratorTemplate configures the ATG.
type AutomaticTransactionGeneratorTemplate struct {
	Enable                  bool `json:"enable,omitempty"`
	StopOnConnectionFailure bool `json:"stopOnConnectionFailure,omitempty"`
	MinDurationMs           int  `json:"minDurationMs,omitempty"`
	MaxDurationMs           int  `json:"maxDurationMs,omitempty"`
	MinDelayMs              int  `json:"minDelayMs,omitempty"`
	MaxDelayMs              int  `json:"maxDelayMs,omitempty"`
}

// StationTemplate is the parsed shape of the station template file.
// Loading and watching the file itself is an external collaborator; the
// core only ever sees an already-parsed StationTemplate.
type StationTemplate struct {
	ChargePointModel            string `json:"chargePointModel"`
	ChargePointVendor           string `json:"chargePointVendor"`
	ChargeBoxSerialNumberPrefix string `json:"chargeBoxSerialNumberPrefix,omitempty"`
	FirmwareVersion             string `json:"firmwareVersion,omitempty"`

	BaseName   string `json:"baseName"`
	FixedName  bool   `json:"fixedName,omitempty"`
	NameSuffix string `json:"nameSuffix,omitempty"`

	Power              RawNumberOrSlice `json:"power,omitempty"`
	NumberOfConnectors RawNumberOrSlice `json:"numberOfConnectors"`
	NumberOfPhases     int              `json:"numberOfPhases,omitempty"`
	VoltageOut         float64          `json:"voltageOut,omitempty"`
	PowerOutType       PowerOutType     `json:"powerOutType,omitempty"`

	SupervisionURL    RawStringOrSlice `json:"supervisionURL"`
	AuthorizationFile string           `json:"authorizationFile,omitempty"`

	UseConnectorId0         *bool `json:"useConnectorId0,omitempty"`
	RandomConnectors        bool  `json:"randomConnectors,omitempty"`
	PowerSharedByConnectors bool  `json:"powerSharedByConnectors,omitempty"`

	ConnectionTimeout         int  `json:"connectionTimeout,omitempty"`
	AutoReconnectMaxRetries   int  `json:"autoReconnectMaxRetries,omitempty"`
	RegistrationMaxRetries    int  `json:"registrationMaxRetries,omitempty"`
	ReconnectExponentialDelay bool `json:"reconnectExponentialDelay,omitempty"`
	ResetTime                 int  `json:"resetTime,omitempty"`

	EnableStatistics                   bool `json:"enableStatistics,omitempty"`
	DistributeStationsToTenantsEqually bool `json:"distributeStationsToTenantsEqually,omitempty"`

	AuthorizeRemoteTxRequests bool `json:"authorizeRemoteTxRequests,omitempty"`

	Configuration map[string]string         `json:"Configuration,omitempty"`
	Connectors    map[int]ConnectorTemplate `json:"Connectors,omitempty"`

	AutomaticTransactionGenerator AutomaticTransactionGeneratorTemplate `json:"AutomaticTransactionGenerator,omitempty"`
}

// UseConnectorId0Default reports whether id 0 should be copied from the
// template when the field is unset; default true.
func (t *StationTemplate) UseConnectorId0Default() bool {
	if t.UseConnectorId0 == nil {
		return true
	}
	return *t.UseConnectorId0
}

// DefaultResetTime is applied when the template omits resetTime.
const DefaultResetTime = 60

func (t *StationTemplate) ResetTimeOrDefault() int {
	if t.ResetTime <= 0 {
		return DefaultResetTime
	}
	return t.ResetTime
}

// DefaultConnectionTimeout is applied when the template omits
// connectionTimeout; unlike ResetTimeOrDefault a template value of 0 is
// meaningful (it disables the WS handshake timeout) and is returned as-is.
const DefaultConnectionTimeout = 30

func (t *StationTemplate) ConnectionTimeoutOrDefault() int {
	if t.ConnectionTimeout < 0 {
		return DefaultConnectionTimeout
	}
	return t.ConnectionTimeout
}
