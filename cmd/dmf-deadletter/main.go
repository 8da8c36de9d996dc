/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command dmf-deadletter lists and replays messages on the DMF dead-letter stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/deadletter"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/natsutil"
)

type toolConfig struct {
	natsURL   string
	natsCreds string
	tlsCert   string
	tlsKey    string
	tlsCA     string
	jsDomain  string
	stream    string
	command   string
	from      uint64
	limit     int
	seq       uint64
	purge     bool
	asJSON    bool
	timeout   time.Duration
}

var (
	errUnknownCommand  = errors.New("unknown command; use list or replay")
	errSequenceMissing = errors.New("replay requires -seq")
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("dmf-deadletter: %v", err)
	}

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatalf("dmf-deadletter: %v", err)
	}
}

func parseFlags(args []string) (*toolConfig, error) {
	cfg := &toolConfig{}

	fs := flag.NewFlagSet("dmf-deadletter", flag.ContinueOnError)
	fs.StringVar(&cfg.natsURL, "nats-url", getenvDefault("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	fs.StringVar(&cfg.natsCreds, "creds", os.Getenv("NATS_CREDS_FILE"), "NATS credentials file")
	fs.StringVar(&cfg.tlsCert, "tls-cert", os.Getenv("NATS_TLS_CERT"), "Client certificate for mTLS")
	fs.StringVar(&cfg.tlsKey, "tls-key", os.Getenv("NATS_TLS_KEY"), "Client key for mTLS")
	fs.StringVar(&cfg.tlsCA, "tls-ca", os.Getenv("NATS_TLS_CA"), "CA bundle for mTLS")
	fs.StringVar(&cfg.jsDomain, "domain", os.Getenv("NATS_JS_DOMAIN"), "JetStream domain")
	fs.StringVar(&cfg.stream, "stream", natsutil.DefaultDeadLetterStream, "Dead-letter stream name")
	fs.Uint64Var(&cfg.from, "from", 0, "First stream sequence to list (0 lists from the oldest)")
	fs.IntVar(&cfg.limit, "limit", 50, "Maximum number of entries to list")
	fs.Uint64Var(&cfg.seq, "seq", 0, "Stream sequence to replay")
	fs.BoolVar(&cfg.purge, "purge", false, "Delete the entry after a successful replay")
	fs.BoolVar(&cfg.asJSON, "json", false, "Print entries as JSON lines")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "Overall timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.command = fs.Arg(0)
	if cfg.command == "" {
		cfg.command = "list"
	}

	switch cfg.command {
	case "list":
	case "replay":
		if cfg.seq == 0 {
			if raw := fs.Arg(1); raw != "" {
				seq, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid sequence %q: %w", raw, err)
				}

				cfg.seq = seq
			}
		}

		if cfg.seq == 0 {
			return nil, errSequenceMissing
		}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, cfg.command)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func (c *toolConfig) natsConfig() *models.NATSConfig {
	nc := &models.NATSConfig{URL: c.natsURL, Domain: c.jsDomain}

	if c.natsCreds != "" {
		nc.Credentials = &models.NATSCredentials{CredsFile: c.natsCreds}
	}

	if c.tlsCert != "" || c.tlsCA != "" {
		nc.Security = &models.SecurityConfig{
			Mode: models.SecurityModeMTLS,
			TLS: models.TLSConfig{
				CertFile: c.tlsCert,
				KeyFile:  c.tlsKey,
				CAFile:   c.tlsCA,
			},
		}
	}

	return nc
}

func run(cfg *toolConfig, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	toolLog := logger.New(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())

	natsCfg := cfg.natsConfig()

	nc, err := natsutil.Connect(ctx, natsCfg, natsutil.ConnectOptions{Name: "dmf-deadletter", MaxElapsed: cfg.timeout}, toolLog)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := natsutil.JetStream(nc, natsCfg.Domain)
	if err != nil {
		return err
	}

	inspector := deadletter.NewInspector(js, cfg.stream, toolLog)

	if cfg.command == "replay" {
		entry, err := inspector.Replay(ctx, cfg.seq, cfg.purge)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "replayed %d to %s\n", entry.Sequence, entry.OriginalSubject)

		return err
	}

	entries, err := inspector.List(ctx, cfg.from, cfg.limit)
	if err != nil {
		return err
	}

	if cfg.asJSON {
		return writeJSON(out, entries)
	}

	return writeTable(out, entries)
}

func writeJSON(out io.Writer, entries []deadletter.Entry) error {
	enc := json.NewEncoder(out)

	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return err
		}
	}

	return nil
}

func writeTable(out io.Writer, entries []deadletter.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "SEQ\tSUBJECT\tTENANT\tTYPE\tREJECTED\tREASON")

	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Sequence, e.OriginalSubject, e.Headers[dmf.HeaderTenant], e.Headers[dmf.HeaderType], e.RejectedAt, e.Reason)
	}

	return tw.Flush()
}
