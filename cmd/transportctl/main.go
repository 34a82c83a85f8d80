// Copyright 2016 Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Amazon Software License (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://aws.amazon.com/asl/
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package main is the transport controller's entry point, wired the way
// agent/agent.go wires the SSM agent: load configuration, construct the
// long-lived collaborators, start background work, then block on a signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/opencpi/transport/internal/dispatchloop"
	"github.com/opencpi/transport/transport/config"
	"github.com/opencpi/transport/transport/controller"
	logger "github.com/opencpi/transport/transport/log"
	"github.com/opencpi/transport/transport/provider"
)

func main() {
	if err := Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Start parses flags, constructs a Transport Controller over an in-memory
// reference provider, and runs its dispatch loop until interrupted.
//
// The in-memory reference provider stands in for a real PIO or
// network-mapped-memory transport (spec.md section 1 places those out of
// scope); swapping one in only requires constructing a different
// provider.Registry here.
func Start() error {
	configPath := flag.String("config", "", "path to a transport controller JSON config file")
	protocol := flag.String("protocol", "", "default local endpoint protocol (defaults to the configured DefaultProtocol)")
	mailboxSlots := flag.Int("mailboxes", 4, "mailboxes per reference endpoint")
	dispatchIntervalSeconds := flag.Int("dispatch-interval", 1, "seconds between dispatch ticks")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		cfg = config.LoadFromFile(*configPath)
	}
	if *protocol == "" {
		*protocol = cfg.Endpoint.DefaultProtocol
	}

	log := logger.GetLogger()
	defer log.Flush()

	registry := provider.NewLoopbackRegistry(*protocol, *mailboxSlots)
	ctl := controller.New(registry, *protocol, cfg, log)

	loop, err := dispatchloop.Start(ctl, *dispatchIntervalSeconds, log)
	if err != nil {
		return fmt.Errorf("transportctl: starting dispatch loop: %w", err)
	}
	defer loop.Stop()

	log.Infof("transportctl: running with protocol %s, %d mailboxes, dispatch every %ds", *protocol, *mailboxSlots, *dispatchIntervalSeconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return waitForSignal(ctx)
	})

	return group.Wait()
}

// waitForSignal blocks until ctx is done or a termination signal arrives,
// treating either as a normal shutdown request rather than a failure.
func waitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return nil
	case <-sigCh:
		return nil
	}
}
