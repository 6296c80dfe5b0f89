package afcd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/afcctl/internal/dispatch"
	"github.com/danmuck/afcctl/internal/protocol"
	"github.com/danmuck/afcctl/internal/protocol/packet"
	"github.com/danmuck/afcctl/internal/protocol/schema"
	"github.com/danmuck/afcctl/internal/protocol/tlv"
	"github.com/danmuck/afcctl/internal/vendor"
	"github.com/rs/zerolog"
)

// BuildVersion is overridden at link time with -X.
var BuildVersion = "afcctl-dev"

// 6 GHz band: center frequency = 5950 + 5 * channel.
const (
	bandStartMHz   = 5950
	channelStepMHz = 5
)

// Handlers implements the AFC control-app commands.
type Handlers struct {
	State   *State
	Vendor  vendor.Invoker
	Oracle  ChannelOracle
	Version string
	// StrictLocation rejects a geo area whose sub-fields are missing or malformed.
	StrictLocation bool
	Logger         zerolog.Logger
}

// Routes returns the dispatch table entries for every supported command.
func (h *Handlers) Routes() []dispatch.Route {
	return []dispatch.Route{
		{Command: schema.CmdGetControlAppVersion, Handle: h.GetVersion},
		{Command: schema.CmdAFCDConfigure, Handle: h.Configure},
		{Command: schema.CmdAFCDOperation, Handle: h.Operate},
		{Command: schema.CmdAFCDGetInfo, Handle: h.GetInfo},
	}
}

// FrequencyForChannel returns the 6 GHz center frequency of channel.
func FrequencyForChannel(channel int) int {
	return bandStartMHz + channelStepMHz*channel
}

func (h *Handlers) GetVersion(_ context.Context, req, resp *packet.Packet) error {
	version := h.Version
	if version == "" {
		version = BuildVersion
	}
	resp.AppendHeader(schema.CmdResponse, req.Header.Sequence)
	if len(version) > tlv.MaxValueLen {
		err := protocol.Invalid(schema.FieldControlAppVersion, schema.Name(schema.FieldControlAppVersion),
			fmt.Sprintf("%d bytes exceeds %d", len(version), tlv.MaxValueLen))
		if rerr := dispatch.Respond(resp, err); rerr != nil {
			return rerr
		}
		return err
	}
	if err := dispatch.Respond(resp, nil); err != nil {
		return err
	}
	return resp.AppendStringField(schema.FieldControlAppVersion, version)
}

func (h *Handlers) GetInfo(ctx context.Context, req, resp *packet.Packet) error {
	resp.AppendHeader(schema.CmdResponse, req.Header.Sequence)
	oracle := h.Oracle
	if oracle == nil {
		oracle = DefaultOracle()
	}
	channel, err := oracle.CurrentChannel(ctx)
	if err != nil {
		err = fmt.Errorf("afcd: channel oracle: %w", err)
		if rerr := dispatch.Respond(resp, err); rerr != nil {
			return rerr
		}
		return err
	}
	freq := FrequencyForChannel(channel)
	h.Logger.Debug().Int("channel", channel).Int("freq", freq).Msg("afcd.GetInfo")

	if err := dispatch.Respond(resp, nil); err != nil {
		return err
	}
	if err := resp.AppendStringField(schema.FieldOperFreq, strconv.Itoa(freq)); err != nil {
		return err
	}
	if err := resp.AppendStringField(schema.FieldOperChannel, strconv.Itoa(channel)); err != nil {
		return err
	}
	return resp.AppendStringField(schema.FieldCenterFreqIndex, strconv.Itoa(channel))
}

func (h *Handlers) Configure(_ context.Context, req, resp *packet.Packet) error {
	schema.Describe(h.Logger, req.Fields)

	resp.AppendHeader(schema.CmdResponse, req.Header.Sequence)
	staged, err := h.stage(req)
	if err != nil {
		h.Logger.Error().Err(err).Uint16("seq", req.Header.Sequence).Msg("afcd.Configure rejected")
		if rerr := dispatch.Respond(resp, err); rerr != nil {
			return rerr
		}
		return err
	}
	cfg := h.state().Commit(staged)
	ev := h.Logger.Info().
		Uint64("generation", cfg.Generation).
		Str("server_url", cfg.ServerURL).
		Bool("ca_cert", cfg.CACert != "")
	if mode, ok := cfg.GeoArea(); ok {
		ev = ev.Stringer("geo_area", mode)
	}
	ev.Msg("afcd.Configure applied")
	return dispatch.Respond(resp, nil)
}

// stage parses the request without touching State. Mandatory fields are
// checked first, server URL before certificate.
func (h *Handlers) stage(req *packet.Packet) (Staged, error) {
	var st Staged

	f, ok := req.FindField(schema.FieldServerURL)
	if !ok {
		return Staged{}, protocol.Missing(schema.FieldServerURL, schema.Name(schema.FieldServerURL))
	}
	st.ServerURL = f.Text()
	if len(st.ServerURL) > MaxServerURLLen {
		return Staged{}, protocol.Invalid(schema.FieldServerURL, schema.Name(schema.FieldServerURL),
			fmt.Sprintf("%d bytes exceeds %d", len(st.ServerURL), MaxServerURLLen))
	}

	f, ok = req.FindField(schema.FieldCACert)
	if !ok {
		return Staged{}, protocol.Missing(schema.FieldCACert, schema.Name(schema.FieldCACert))
	}
	st.CACert = f.Text()
	if len(st.CACert) > MaxCACertLen {
		return Staged{}, protocol.Invalid(schema.FieldCACert, schema.Name(schema.FieldCACert),
			fmt.Sprintf("%d bytes exceeds %d", len(st.CACert), MaxCACertLen))
	}
	if st.CACert != "" {
		h.Logger.Debug().Msg("Configure root certificate")
	} else {
		h.Logger.Debug().Msg("Do not configure root certificate")
	}

	if f, ok := req.FindField(schema.FieldSecurityType); ok {
		if v, err := intField(f); err != nil {
			h.skipOptional(err)
		} else {
			if v == 0 {
				h.Logger.Debug().Msg("Configure SAE")
			}
			st.SecurityType = &v
		}
	}

	if f, ok := req.FindField(schema.FieldBandwidth); ok {
		if bw, err := bandwidthField(f); err != nil {
			h.skipOptional(err)
		} else {
			h.Logger.Debug().Stringer("bandwidth", bw).Msg("Configure DUT bandwidth")
			st.Bandwidth = &bw
		}
	}

	if f, ok := req.FindField(schema.FieldLocationGeoArea); ok {
		mode, err := geoAreaField(f)
		if err != nil {
			h.skipOptional(err)
		} else {
			loc, err := h.stageLocation(req, mode)
			if err != nil {
				return Staged{}, err
			}
			st.Location = loc
		}
	}

	st.Registration = stageRegistration(req)
	return st, nil
}

// stageLocation collects the sub-fields of mode. Once a geo area is chosen its
// sub-fields are checked as a unit.
func (h *Handlers) stageLocation(req *packet.Packet, mode GeoArea) (*Location, error) {
	var err error
	loc := &Location{Mode: mode}
	var problems []error
	sub := func(id uint16) (tlv.Field, bool) {
		f, ok := req.FindField(id)
		if !ok {
			problems = append(problems, protocol.Missing(id, schema.Name(id)))
		}
		return f, ok
	}
	invalid := func(id uint16, err error) {
		problems = append(problems, protocol.Invalid(id, schema.Name(id), err.Error()))
	}

	switch mode {
	case GeoEllipse:
		e := &Ellipse{}
		if f, ok := sub(schema.FieldEllipseCenter); ok {
			if e.Center, err = parsePoint(f.Text()); err != nil {
				invalid(f.ID, err)
			}
		}
		if f, ok := sub(schema.FieldEllipseMajorAxis); ok {
			if e.MajorAxis, err = f.Int(); err != nil {
				invalid(f.ID, err)
			}
		}
		if f, ok := sub(schema.FieldEllipseMinorAxis); ok {
			if e.MinorAxis, err = f.Int(); err != nil {
				invalid(f.ID, err)
			}
		}
		if f, ok := sub(schema.FieldEllipseOrientation); ok {
			if e.Orientation, err = f.Int(); err != nil {
				invalid(f.ID, err)
			} else if e.Orientation < 0 || e.Orientation > 180 {
				invalid(f.ID, fmt.Errorf("orientation %d outside 0-180", e.Orientation))
			}
		}
		loc.Ellipse = e
	case GeoLinearPolygon:
		if f, ok := sub(schema.FieldLinearPolyBoundary); ok {
			if loc.Linear, err = parsePointList(f.Text()); err != nil {
				invalid(f.ID, err)
			}
		}
	case GeoRadialPolygon:
		r := &RadialPolygon{}
		if f, ok := sub(schema.FieldRadialPolyCenter); ok {
			if r.Center, err = parsePoint(f.Text()); err != nil {
				invalid(f.ID, err)
			}
		}
		if f, ok := sub(schema.FieldRadialPolyBoundary); ok {
			if r.Boundary, err = parseRadialList(f.Text()); err != nil {
				invalid(f.ID, err)
			}
		}
		loc.Radial = r
	}

	if len(problems) > 0 {
		joined := errors.Join(problems...)
		if h.StrictLocation {
			return nil, joined
		}
		h.Logger.Warn().Err(joined).Stringer("geo_area", mode).Msg("afcd.Configure incomplete geo area")
	}
	return loc, nil
}

// registrationFields are stored verbatim; their meaning belongs to the DUT.
var registrationFields = []uint16{
	schema.FieldVersionNumber,
	schema.FieldRequestID,
	schema.FieldSerialNumber,
	schema.FieldNRA,
	schema.FieldCertID,
	schema.FieldRuleSetID,
	schema.FieldHeight,
	schema.FieldHeightType,
	schema.FieldVerticalUncert,
	schema.FieldDeployment,
	schema.FieldFreqRange,
	schema.FieldGlobalOpClass,
	schema.FieldChannelCFI,
	schema.FieldMinDesiredPower,
	schema.FieldTestSSID,
}

func stageRegistration(req *packet.Packet) map[string]string {
	out := make(map[string]string)
	for _, id := range registrationFields {
		if f, ok := req.FindField(id); ok {
			out[schema.Name(id)] = f.Text()
		}
	}
	if _, ok := req.FindField(schema.FieldWPAPassphrase); ok {
		out[schema.Name(schema.FieldWPAPassphrase)] = "<set>"
	}
	return out
}

func (h *Handlers) Operate(ctx context.Context, req, resp *packet.Packet) error {
	resp.AppendHeader(schema.CmdResponse, req.Header.Sequence)
	actions := h.planActions(req)

	invoker := h.Vendor
	if invoker == nil {
		invoker = vendor.LogInvoker{Logger: h.Logger}
	}
	var failures []error
	for _, a := range actions {
		if err := invoker.Invoke(ctx, a); err != nil {
			h.Logger.Error().Err(err).Str("action", a.String()).Msg("afcd.Operate vendor action failed")
			failures = append(failures, &protocol.VendorActionError{Action: a.String(), Err: err})
		}
	}
	err := errors.Join(failures...)
	if rerr := dispatch.Respond(resp, err); rerr != nil {
		return rerr
	}
	return err
}

// planActions maps present trigger fields onto vendor actions, in wire order.
// Each trigger stands alone: one with an unusable value is skipped and the
// others still run.
func (h *Handlers) planActions(req *packet.Packet) []vendor.Action {
	var actions []vendor.Action
	if _, ok := req.FindField(schema.FieldDeviceReset); ok {
		actions = append(actions, vendor.Action{Kind: vendor.KindDeviceReset})
	}
	if f, ok := req.FindField(schema.FieldSendSpectrumReq); ok {
		if mode, err := spectrumField(f); err != nil {
			h.skipOptional(err)
		} else {
			actions = append(actions, vendor.Action{Kind: vendor.KindSendSpectrumRequest, Spectrum: mode})
		}
	}
	if _, ok := req.FindField(schema.FieldPowerCycle); ok {
		actions = append(actions, vendor.Action{Kind: vendor.KindPowerCycle})
	}
	if f, ok := req.FindField(schema.FieldSendTestFrame); ok {
		if bw, err := bandwidthField(f); err != nil {
			h.skipOptional(err)
		} else {
			actions = append(actions, vendor.Action{Kind: vendor.KindSendTestFrame, Bandwidth: bw})
		}
	}
	if _, ok := req.FindField(schema.FieldConnectSPAP); ok {
		actions = append(actions, vendor.Action{Kind: vendor.KindConnectSPAP})
	}
	return actions
}

func (h *Handlers) skipOptional(err error) {
	h.Logger.Warn().Err(err).Msg("afcd optional field ignored")
}

func bandwidthField(f tlv.Field) (vendor.Bandwidth, error) {
	v, err := intField(f)
	if err != nil {
		return 0, err
	}
	bw, err := vendor.ParseBandwidth(v)
	if err != nil {
		return 0, protocol.Invalid(f.ID, schema.Name(f.ID), err.Error())
	}
	return bw, nil
}

func spectrumField(f tlv.Field) (vendor.SpectrumMode, error) {
	v, err := intField(f)
	if err != nil {
		return 0, err
	}
	mode, err := vendor.ParseSpectrumMode(v)
	if err != nil {
		return 0, protocol.Invalid(f.ID, schema.Name(f.ID), err.Error())
	}
	return mode, nil
}

func geoAreaField(f tlv.Field) (GeoArea, error) {
	v, err := intField(f)
	if err != nil {
		return 0, err
	}
	mode, err := ParseGeoArea(v)
	if err != nil {
		return 0, protocol.Invalid(f.ID, schema.Name(f.ID), err.Error())
	}
	return mode, nil
}

func intField(f tlv.Field) (int, error) {
	v, err := f.Int()
	if err != nil {
		return 0, protocol.Invalid(f.ID, schema.Name(f.ID), err.Error())
	}
	return v, nil
}

func (h *Handlers) state() *State {
	if h.State == nil {
		h.State = NewState()
	}
	return h.State
}
