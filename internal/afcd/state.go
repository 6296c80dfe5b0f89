package afcd

import (
	"sync"
	"time"

	"github.com/danmuck/afcctl/internal/vendor"
)

const (
	MaxServerURLLen = 63
	// MaxCACertLen is the storage bound. A single TLV field carries at most
	// tlv.MaxValueLen bytes, so on the wire the field length limits first.
	MaxCACertLen = 511
)

// Config is a snapshot of the operating parameters applied by configure.
type Config struct {
	ServerURL    string            `json:"server_url"`
	CACert       string            `json:"ca_cert"`
	SecurityType *int              `json:"security_type,omitempty"`
	Bandwidth    *vendor.Bandwidth `json:"bandwidth,omitempty"`
	Location     *Location         `json:"location,omitempty"`
	// Registration holds verbatim device descriptor values keyed by field name.
	Registration map[string]string `json:"registration,omitempty"`
	Generation   uint64            `json:"generation"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// GeoArea reports the configured geo-area mode, if any.
func (c Config) GeoArea() (GeoArea, bool) {
	if c.Location == nil {
		return 0, false
	}
	return c.Location.Mode, true
}

func (c Config) clone() Config {
	out := c
	if c.SecurityType != nil {
		v := *c.SecurityType
		out.SecurityType = &v
	}
	if c.Bandwidth != nil {
		v := *c.Bandwidth
		out.Bandwidth = &v
	}
	out.Location = c.Location.clone()
	if c.Registration != nil {
		out.Registration = make(map[string]string, len(c.Registration))
		for k, v := range c.Registration {
			out.Registration[k] = v
		}
	}
	return out
}

// Staged is a fully validated configure request awaiting commit.
type Staged struct {
	ServerURL    string
	CACert       string
	SecurityType *int
	Bandwidth    *vendor.Bandwidth
	Location     *Location
	Registration map[string]string
}

// State owns the configuration shared across requests for one service lifetime.
type State struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time
}

func NewState() *State {
	return &State{now: time.Now}
}

// Snapshot returns a deep copy of the current configuration.
func (s *State) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// Commit applies st in one step. Optional values absent from st keep their
// previous value.
func (s *State) Commit(st Staged) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg.clone()
	next.ServerURL = st.ServerURL
	next.CACert = st.CACert
	if st.SecurityType != nil {
		v := *st.SecurityType
		next.SecurityType = &v
	}
	if st.Bandwidth != nil {
		v := *st.Bandwidth
		next.Bandwidth = &v
	}
	if st.Location != nil {
		next.Location = st.Location.clone()
	}
	if len(st.Registration) > 0 {
		if next.Registration == nil {
			next.Registration = make(map[string]string, len(st.Registration))
		}
		for k, v := range st.Registration {
			next.Registration[k] = v
		}
	}
	next.Generation++
	next.UpdatedAt = s.now()
	s.cfg = next
	return next.clone()
}

// Reset clears the configuration at service stop.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = Config{}
}
