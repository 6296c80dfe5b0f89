package main

import (
	"fmt"
	"os"

	"github.com/danmuck/afcctl/internal/controlapp"
	"github.com/danmuck/afcctl/internal/logging"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "TOML config file.")
	listen := pflag.StringP("listen", "l", "", "UDP control listen address.")
	status := pflag.String("status", "", "HTTP status listen address, empty disables.")
	noAck := pflag.Bool("no-ack", false, "Do not send an ACK before each response.")
	lenient := pflag.Bool("lenient-location", false, "Accept geo areas with missing sub-fields.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: afcctl [options]\n\n")
		fmt.Fprintf(os.Stderr, "AFC device-under-test control endpoint.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logging.ConfigureRuntime()

	cfg := controlapp.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "afcctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyFlags(&cfg, flagOverrides{
		listen:  *listen,
		status:  *status,
		noAck:   *noAck,
		lenient: *lenient,
		set:     pflag.CommandLine.Changed,
	})

	svc, err := controlapp.NewServiceWithConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "afcctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "afcctl: %v\n", err)
		os.Exit(1)
	}
}

type flagOverrides struct {
	listen  string
	status  string
	noAck   bool
	lenient bool
	set     func(name string) bool
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cfg *controlapp.ServiceConfig, f flagOverrides) {
	if f.set("listen") {
		cfg.ListenAddr = f.listen
	}
	if f.set("status") {
		cfg.StatusAddr = f.status
	}
	if f.set("no-ack") {
		cfg.Ack = !f.noAck
	}
	if f.set("lenient-location") {
		cfg.StrictLocation = !f.lenient
	}
}
