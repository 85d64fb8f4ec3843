package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceStopTimeout = 45 * time.Second

// program adapts the app to the service manager's Start/Stop lifecycle.
type program struct {
	app  *app
	done chan struct{}
	err  error
}

func (p *program) Start(s service.Service) error {
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.err = p.app.run()
		if p.err != nil {
			p.app.logger.Error("service run failed", zap.Error(p.err))
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.app.manager.Trigger("service stop")
	select {
	case <-p.done:
		return p.err
	case <-time.After(serviceStopTimeout):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the installed service. The service runs "run"
// with the same env and config files the installing command saw.
func serviceConfig(envFile, configFile string) *service.Config {
	args := []string{"run"}
	if envFile != "" {
		if abs, err := filepath.Abs(envFile); err == nil {
			envFile = abs
		}
		args = append(args, "--env-file", envFile)
	}
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
		args = append(args, "--config", configFile)
	}
	return &service.Config{
		Name:        "syncmonitor",
		DisplayName: "Sync Monitor",
		Description: "Tracks blockchain node sync progress and serves it on a dashboard",
		Arguments:   args,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

// runService hands control to the service manager until it stops us.
func runService(a *app) error {
	s, err := service.New(&program{app: a}, serviceConfig("", ""))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if err := s.Run(); err != nil {
		return fmt.Errorf("service run: %w", err)
	}
	return nil
}

func newServiceCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the system service",
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(newServiceActionCommand(action, stdout))
	}
	return cmd
}

func newServiceActionCommand(action string, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the syncmonitor service", action),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			configFile, _ := cmd.Flags().GetString("config")

			// the service manager only calls Start/Stop when running the
			// service itself, never for control actions
			s, err := service.New(&program{}, serviceConfig(envFile, configFile))
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}
			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Fprintf(stdout, "service %s: ok\n", action)
			return nil
		},
	}
}
