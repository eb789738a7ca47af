package messages

const BootNotificationFeatureName = "BootNotification"

type RegistrationStatus string

const (
	RegistrationStatusAccepted RegistrationStatus = "Accepted"
	RegistrationStatusPending  RegistrationStatus = "Pending"
	RegistrationStatusRejected RegistrationStatus = "Rejected"
)

type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	Iccid                   string `json:"iccid,omitempty"`
	Imsi                    string `json:"imsi,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
}

func (r *BootNotificationRequest) GetFeatureName() string { return BootNotificationFeatureName }

type BootNotificationResponse struct {
	CurrentTime *DateTime           `json:"currentTime"`
	Interval    int                 `json:"interval"`
	Status      RegistrationStatus `json:"status"`
}

func (r *BootNotificationResponse) GetFeatureName() string { return BootNotificationFeatureName }
