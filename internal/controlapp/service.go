package controlapp

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/afcctl/internal/afcd"
	"github.com/danmuck/afcctl/internal/dispatch"
	"github.com/danmuck/afcctl/internal/observability"
	"github.com/danmuck/afcctl/internal/protocol/packet"
	"github.com/danmuck/afcctl/internal/tools"
	"github.com/danmuck/afcctl/internal/vendor"
	"github.com/rs/zerolog"
)

var (
	ErrListenAddrRequired = errors.New("controlapp: listen address required")
	ErrInvalidLimits      = errors.New("controlapp: invalid packet limits")
	ErrUnknownVendorKind  = errors.New("controlapp: unknown vendor action kind")
	ErrAlreadyServed      = errors.New("controlapp: service already served")
)

// VendorConfig selects how operate actions reach the DUT.
type VendorConfig struct {
	// Hooks maps an action kind to an argv template. Kinds without a hook
	// are only logged.
	Hooks   map[vendor.Kind][]string
	Timeout time.Duration
}

// ServiceConfig configures the control-app runtime.
type ServiceConfig struct {
	NodeID         string
	ListenAddr     string
	StatusAddr     string
	Ack            bool
	StrictLocation bool
	Version        string
	Channel        int
	MaxPacketBytes int
	MaxFields      int
	Vendor         VendorConfig
}

// DefaultServiceConfig mirrors the harness defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		NodeID:         "afcd.local",
		ListenAddr:     "0.0.0.0:9004",
		StatusAddr:     "",
		Ack:            true,
		StrictLocation: true,
		Version:        afcd.BuildVersion,
		Channel:        afcd.DefaultChannel,
		MaxPacketBytes: packet.BufferLen,
		MaxFields:      packet.MaxFields,
		Vendor:         VendorConfig{Timeout: 30 * time.Second},
	}
}

func (c ServiceConfig) limits() packet.Limits {
	return packet.Limits{MaxBytes: c.MaxPacketBytes, MaxFields: c.MaxFields}
}

func (c ServiceConfig) validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrListenAddrRequired
	}
	if c.MaxPacketBytes < packet.HeaderLen || c.MaxFields <= 0 {
		return ErrInvalidLimits
	}
	for kind := range c.Vendor.Hooks {
		if !vendor.KnownKind(kind) {
			return ErrUnknownVendorKind
		}
	}
	return nil
}

// Service owns the configuration state, dispatch table and transports for one
// control-app lifetime.
type Service struct {
	cfg      ServiceConfig
	logger   zerolog.Logger
	state    *afcd.State
	handlers *afcd.Handlers
	table    *dispatch.Table
	started  time.Time
	served   atomic.Bool

	mu       sync.Mutex
	udpAddr  net.Addr
	ready    chan struct{}
	requests uint64
}

// NewService returns a service using DefaultServiceConfig.
func NewService() (*Service, error) {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig builds the handler set and dispatch table for cfg.
func NewServiceWithConfig(cfg ServiceConfig) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := observability.ComponentLogger(cfg.NodeID, "controlapp")
	state := afcd.NewState()

	var invoker vendor.Invoker = vendor.LogInvoker{Logger: logger}
	if len(cfg.Vendor.Hooks) > 0 {
		invoker = vendor.ExecInvoker{
			Runner:   tools.ExecRunner{Env: []string{"AFCCTL_NODE=" + cfg.NodeID}},
			Hooks:    cfg.Vendor.Hooks,
			Timeout:  cfg.Vendor.Timeout,
			Fallback: invoker,
			Logger:   logger,
		}
	}
	invoker = observedInvoker{node: cfg.NodeID, next: invoker}

	handlers := &afcd.Handlers{
		State:          state,
		Vendor:         invoker,
		Oracle:         afcd.StaticOracle{Channel: cfg.Channel},
		Version:        cfg.Version,
		StrictLocation: cfg.StrictLocation,
		Logger:         logger,
	}
	table, err := dispatch.NewTable(dispatch.Options{
		Limits:   cfg.limits(),
		Ack:      cfg.Ack,
		Logger:   logger,
		Observer: observability.DispatchObserver{Node: cfg.NodeID},
	}, handlers.Routes()...)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		state:    state,
		handlers: handlers,
		table:    table,
		ready:    make(chan struct{}),
	}, nil
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the UDP control loop and the optional status surface until ctx
// is done. It returns only after both have stopped, then clears the
// configuration state. A Service is served once.
func (s *Service) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return ErrAlreadyServed
	}
	s.started = time.Now()
	defer s.state.Reset()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controlErr := make(chan error, 1)
	statusErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		controlErr <- s.serveUDP(ctx, s.cfg.ListenAddr)
	}()
	if strings.TrimSpace(s.cfg.StatusAddr) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statusErr <- s.serveStatus(ctx, s.cfg.StatusAddr)
		}()
	}

	s.logger.Info().
		Str("listen", s.cfg.ListenAddr).
		Str("status", s.cfg.StatusAddr).
		Bool("ack", s.cfg.Ack).
		Bool("strict_location", s.cfg.StrictLocation).
		Msg("controlapp.Service.Serve started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("controlapp.Service.Serve shutdown")
			return nil
		case err := <-controlErr:
			return err
		case err := <-statusErr:
			if err != nil {
				return err
			}
		}
	}
}

// Config returns a snapshot of the configuration state.
func (s *Service) Config() afcd.Config {
	return s.state.Snapshot()
}

// Table exposes the dispatch table.
func (s *Service) Table() *dispatch.Table {
	return s.table
}

// UDPAddr blocks until the control listener is bound and returns its address.
func (s *Service) UDPAddr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.udpAddr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) requestCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// observedInvoker records every vendor action in the vendor metrics.
type observedInvoker struct {
	node string
	next vendor.Invoker
}

func (o observedInvoker) Invoke(ctx context.Context, action vendor.Action) error {
	start := time.Now()
	err := o.next.Invoke(ctx, action)
	observability.RecordVendorAction(o.node, action.String(), err == nil, time.Since(start))
	return err
}
