package schema

import "fmt"

// Command codes.
const (
	CmdResponse             uint16 = 0x0000
	CmdAck                  uint16 = 0x0001
	CmdGetControlAppVersion uint16 = 0x5002
	CmdAFCDConfigure        uint16 = 0x9000
	CmdAFCDOperation        uint16 = 0x9001
	CmdAFCDGetInfo          uint16 = 0x9002
)

// Reserved response field IDs.
const (
	FieldMessage           uint16 = 0xA000
	FieldStatus            uint16 = 0xA001
	FieldControlAppVersion uint16 = 0xA004
)

// Status byte values carried in FieldStatus.
const (
	StatusOK    byte = 0x30
	StatusNotOK byte = 0x31
)

// Response message strings.
const (
	MessageOK          = "OK"
	MessageNotOK       = "NOT_OK"
	MessageAck         = "ACK: Command received"
	MessageUnknownAPI  = "Unable to find API"
	MessageVendorError = "VENDOR_ERROR"
)

// AFC request field IDs.
const (
	FieldVersionNumber      uint16 = 0xB000
	FieldRequestID          uint16 = 0xB001
	FieldSerialNumber       uint16 = 0xB002
	FieldNRA                uint16 = 0xB003
	FieldCertID             uint16 = 0xB004
	FieldRuleSetID          uint16 = 0xB005
	FieldLocationGeoArea    uint16 = 0xB006
	FieldEllipseCenter      uint16 = 0xB007
	FieldEllipseMajorAxis   uint16 = 0xB008
	FieldEllipseMinorAxis   uint16 = 0xB009
	FieldEllipseOrientation uint16 = 0xB00A
	FieldLinearPolyBoundary uint16 = 0xB00B
	FieldRadialPolyCenter   uint16 = 0xB00C
	FieldRadialPolyBoundary uint16 = 0xB00D
	FieldHeight             uint16 = 0xB00E
	FieldHeightType         uint16 = 0xB00F
	FieldVerticalUncert     uint16 = 0xB010
	FieldDeployment         uint16 = 0xB011
	FieldFreqRange          uint16 = 0xB012
	FieldGlobalOpClass      uint16 = 0xB013
	FieldChannelCFI         uint16 = 0xB014
	FieldMinDesiredPower    uint16 = 0xB015
	FieldVendorExt          uint16 = 0xB016
	FieldServerURL          uint16 = 0xB017
	FieldTestSSID           uint16 = 0xB018
	FieldDeviceReset        uint16 = 0xB019
	FieldSendSpectrumReq    uint16 = 0xB01A
	FieldPowerCycle         uint16 = 0xB01B
	FieldSecurityType       uint16 = 0xB01C
	FieldWPAPassphrase      uint16 = 0xB01D
	FieldSendTestFrame      uint16 = 0xB01E
	FieldBandwidth          uint16 = 0xB01F
	FieldCACert             uint16 = 0xB020
	FieldConnectSPAP        uint16 = 0xB021
)

// AFC response field IDs.
const (
	FieldOperFreq        uint16 = 0xBC00
	FieldOperChannel     uint16 = 0xBC01
	FieldCenterFreqIndex uint16 = 0xBC02
)

// Kind is how a handler interprets a field value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindBlob
	KindByte
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBlob:
		return "blob"
	case KindByte:
		return "byte"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// CommandName returns the symbolic name of a command code.
func CommandName(code uint16) string {
	switch code {
	case CmdResponse:
		return "CMD_RESPONSE"
	case CmdAck:
		return "CMD_ACK"
	case CmdGetControlAppVersion:
		return "GET_CONTROL_APP_VERSION"
	case CmdAFCDConfigure:
		return "AFCD_CONFIGURE"
	case CmdAFCDOperation:
		return "AFCD_OPERATION"
	case CmdAFCDGetInfo:
		return "AFCD_GET_INFO"
	default:
		return fmt.Sprintf("0x%04x", code)
	}
}
