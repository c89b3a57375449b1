// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fqbench drives synthetic UDP traffic through an fqcodel scheduler and
// reports what the scheduler did with it. While running it serves the
// prometheus metrics and a statistics snapshot over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netqdisc/netqdisc/fqcodel"
	"github.com/netqdisc/netqdisc/fqcodel/config"
	"github.com/netqdisc/netqdisc/pkg/log"
	"github.com/netqdisc/netqdisc/pkg/netpkt"
	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

type benchFlags struct {
	configFile string
	duration   time.Duration
	ratePPS    int
	flows      int
	payload    int
	drainMbps  int
	sample     bool
}

func main() {
	var flags benchFlags
	cmd := &cobra.Command{
		Use:   "fqbench",
		Short: "Drive synthetic traffic through an fqcodel scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if flags.sample {
				fmt.Print(config.Sample)
				return nil
			}
			return run(&flags)
		},
	}
	cmd.Flags().StringVar(&flags.configFile, "config", "", "TOML configuration file")
	cmd.Flags().DurationVar(&flags.duration, "duration", 10*time.Second,
		"offered load duration")
	cmd.Flags().IntVar(&flags.ratePPS, "rate", 50000,
		"offered load in packets per second")
	cmd.Flags().IntVar(&flags.flows, "flows", 32,
		"number of synthetic UDP flows")
	cmd.Flags().IntVar(&flags.payload, "payload", 1000,
		"UDP payload bytes per packet")
	cmd.Flags().IntVar(&flags.drainMbps, "drain", 200,
		"drain rate in Mbit/s")
	cmd.Flags().BoolVar(&flags.sample, "sample", false,
		"print a sample configuration and exit")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *benchFlags) error {
	cfg := &config.Config{}
	if flags.configFile != "" {
		var err error
		cfg, err = config.Load(flags.configFile)
		if err != nil {
			return err
		}
	}
	if err := log.Setup(log.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return err
	}
	defer log.Flush()

	schedCfg := cfg.Sched.SchedulerConfig()
	schedCfg.Metrics = fqcodel.NewMetrics(nil)
	sched, err := fqcodel.New(schedCfg)
	if err != nil {
		return err
	}
	log.Info("Scheduler ready",
		"flows", sched.Config().Flows, "limit", sched.Config().Limit,
		"quantum", sched.Config().Quantum)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, errCtx := errgroup.WithContext(ctx)
	benchCtx, benchDone := context.WithCancel(errCtx)

	if cfg.Metrics.Addr != "" {
		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
		}))
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			enc := json.NewEncoder(w)
			enc.SetIndent("", "    ")
			if err := enc.Encode(sched.Snapshot()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: r}
		g.Go(func() error {
			defer log.HandlePanic()
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return serrors.Wrap("serving http", err, "addr", cfg.Metrics.Addr)
		})
		g.Go(func() error {
			defer log.HandlePanic()
			<-benchCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info("HTTP server listening", "addr", cfg.Metrics.Addr)
	}

	produced := make(chan struct{})
	g.Go(func() error {
		defer log.HandlePanic()
		defer close(produced)
		return produce(benchCtx, sched, flags)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		defer benchDone()
		return consume(benchCtx, sched, flags, produced)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := sched.Snapshot()
	out, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return serrors.Wrap("encoding statistics", err)
	}
	fmt.Println(string(out))
	return nil
}

// produce offers flags.ratePPS packets per second spread round-robin over
// the synthetic flows, in 10 ms batches, for the configured duration.
func produce(ctx context.Context, sched *fqcodel.Sched, flags *benchFlags) error {
	const tick = 10 * time.Millisecond
	batch := flags.ratePPS / int(time.Second/tick)
	if batch < 1 {
		batch = 1
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	deadline := time.Now().Add(flags.duration)

	dst := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, 1}), 9000)
	var sent, congested, dropped int
	var flowID int
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for range batch {
			src := netip.AddrPortFrom(
				netip.AddrFrom4([4]byte{10, 0, 1, byte(flowID)}),
				uint16(20000+flowID))
			flowID = (flowID + 1) % flags.flows
			pkt, err := netpkt.SynthUDP(src, dst, flags.payload, true)
			if err != nil {
				return serrors.Wrap("synthesizing packet", err)
			}
			switch sched.Enqueue(pkt) {
			case fqcodel.VerdictOK:
				sent++
			case fqcodel.VerdictCongestion:
				congested++
			case fqcodel.VerdictDropped:
				dropped++
			}
		}
	}
	log.Info("Offered load finished",
		"sent", sent, "congestion_signals", congested, "dropped", dropped)
	return nil
}

// consume drains the scheduler at the configured line rate and keeps going
// until the producer is done and the queue runs dry.
func consume(ctx context.Context, sched *fqcodel.Sched, flags *benchFlags,
	produced <-chan struct{}) error {

	bytesPerSec := float64(flags.drainMbps) * 1e6 / 8
	var got, gotBytes int
	for {
		pkt := sched.Dequeue()
		if pkt == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-produced:
				if sched.Len() == 0 {
					log.Info("Drained", "packets", got, "bytes", gotBytes)
					return nil
				}
			case <-time.After(time.Millisecond):
			}
			continue
		}
		got++
		gotBytes += pkt.Length()
		delay := time.Duration(float64(pkt.Length()) / bytesPerSec * float64(time.Second))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
