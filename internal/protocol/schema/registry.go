package schema

import (
	"fmt"

	"github.com/danmuck/afcctl/internal/protocol/tlv"
	"github.com/rs/zerolog"
)

// Entry describes one known field id.
type Entry struct {
	ID   uint16
	Name string
	Kind Kind
}

var entries = []Entry{
	{FieldMessage, "TLV_MESSAGE", KindString},
	{FieldStatus, "TLV_STATUS", KindByte},
	{FieldControlAppVersion, "TLV_CONTROL_APP_VERSION", KindString},

	{FieldVersionNumber, "TLV_AFC_VERSION_NUMBER", KindString},
	{FieldRequestID, "TLV_AFC_REQUEST_ID", KindString},
	{FieldSerialNumber, "TLV_AFC_SERIAL_NUMBER", KindString},
	{FieldNRA, "TLV_AFC_NRA", KindString},
	{FieldCertID, "TLV_AFC_CERT_ID", KindString},
	{FieldRuleSetID, "TLV_AFC_RULE_SET_ID", KindString},
	{FieldLocationGeoArea, "TLV_AFC_LOCATION_GEO_AREA", KindInt},
	{FieldEllipseCenter, "TLV_AFC_ELLIPSE_CENTER", KindString},
	{FieldEllipseMajorAxis, "TLV_AFC_ELLIPSE_MAJOR_AXIS", KindInt},
	{FieldEllipseMinorAxis, "TLV_AFC_ELLIPSE_MINOR_AXIS", KindInt},
	{FieldEllipseOrientation, "TLV_AFC_ELLIPSE_ORIENTATION", KindInt},
	{FieldLinearPolyBoundary, "TLV_AFC_LINEARPOLY_BOUNDARY", KindString},
	{FieldRadialPolyCenter, "TLV_AFC_RADIALPOLY_CENTER", KindString},
	{FieldRadialPolyBoundary, "TLV_AFC_RADIALPOLY_BOUNDARY", KindString},
	{FieldHeight, "TLV_AFC_HEIGHT", KindInt},
	{FieldHeightType, "TLV_AFC_HEIGHT_TYPE", KindString},
	{FieldVerticalUncert, "TLV_AFC_VERTICAL_UNCERT", KindInt},
	{FieldDeployment, "TLV_AFC_DEPLOYMENT", KindInt},
	{FieldFreqRange, "TLV_AFC_FREQ_RANGE", KindString},
	{FieldGlobalOpClass, "TLV_AFC_GLOBAL_OPCL", KindString},
	{FieldChannelCFI, "TLV_AFC_CHANNEL_CFI", KindString},
	{FieldMinDesiredPower, "TLV_AFC_MIN_DESIRED_PWR", KindString},
	{FieldVendorExt, "TLV_AFC_VENDOR_EXT", KindBlob},
	{FieldServerURL, "TLV_AFC_SERVER_URL", KindString},
	{FieldTestSSID, "TLV_AFC_TEST_SSID", KindString},
	{FieldDeviceReset, "TLV_AFC_DEVICE_RESET", KindInt},
	{FieldSendSpectrumReq, "TLV_AFC_SEND_SPECTRUM_REQ", KindInt},
	{FieldPowerCycle, "TLV_AFC_POWER_CYCLE", KindInt},
	{FieldSecurityType, "TLV_AFC_SECURITY_TYPE", KindInt},
	{FieldWPAPassphrase, "TLV_AFC_WPA_PASSPHRASE", KindString},
	{FieldSendTestFrame, "TLV_AFC_SEND_TEST_FRAME", KindInt},
	{FieldBandwidth, "TLV_AFC_BANDWIDTH", KindInt},
	{FieldCACert, "TLV_AFC_CA_CERT", KindString},
	{FieldConnectSPAP, "TLV_AFC_CONNECT_SP_AP", KindInt},

	{FieldOperFreq, "TLV_AFC_OPER_FREQ", KindInt},
	{FieldOperChannel, "TLV_AFC_OPER_CHANNEL", KindInt},
	{FieldCenterFreqIndex, "TLV_AFC_CENTER_FREQ_INDEX", KindInt},
}

// redacted fields are never echoed into logs.
var redacted = map[uint16]struct{}{
	FieldWPAPassphrase: {},
}

var byID = func() map[uint16]Entry {
	m := make(map[uint16]Entry, len(entries))
	for _, e := range entries {
		if _, dup := m[e.ID]; dup {
			panic("schema: duplicate field id " + e.Name)
		}
		m[e.ID] = e
	}
	return m
}()

// Lookup returns the registry entry for id.
func Lookup(id uint16) (Entry, bool) {
	e, ok := byID[id]
	return e, ok
}

// Name returns the registered name of id, or its hex form.
func Name(id uint16) string {
	if e, ok := byID[id]; ok {
		return e.Name
	}
	return fmt.Sprintf("0x%04x", id)
}

// Entries returns a copy of the registry in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Describe logs every known field at debug level. Unknown ids are skipped.
func Describe(logger zerolog.Logger, fields []tlv.Field) int {
	described := 0
	for _, f := range fields {
		e, ok := byID[f.ID]
		if !ok {
			continue
		}
		described++
		ev := logger.Debug().Str("tlv", e.Name).Int("len", f.Len())
		if _, hide := redacted[f.ID]; hide {
			ev.Str("value", "<redacted>").Msg("schema.Describe")
			continue
		}
		switch e.Kind {
		case KindBlob:
			ev.Hex("value", f.Value)
		case KindByte:
			ev.Hex("value", f.Value)
		default:
			ev.Str("value", f.Text())
		}
		ev.Msg("schema.Describe")
	}
	return described
}
