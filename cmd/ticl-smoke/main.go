// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

// ticl-smoke is a standalone harness for exercising a ticl.Client
// against a scripted in-process peer: it reads length-prefixed
// messages from stdin, feeds them to HandleInboundMessage, and writes
// whatever TakeOutboundMessage produces back to stdout. Useful for
// manually walking a client through a session without standing up a
// real invalidation service.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	ticl "github.com/chromium-googlesource-mirror/google-cache-invalidation-api"
)

func main() {
	os.Exit(run())
}

func run() int {
	var stateFile string
	var appName string
	var clientType int32
	var verbose bool

	flagSet := pflag.NewFlagSet("ticl-smoke", pflag.ContinueOnError)
	flagSet.StringVar(&stateFile, "state-file", "", "path to a persisted state blob to resume from, if any")
	flagSet.StringVar(&appName, "app-name", "ticl-smoke", "application name stamped into nonces")
	flagSet.Int32Var(&clientType, "client-type", 0, "client type stamped onto outbound messages")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every inbound/outbound message")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return 0
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var serialized []byte
	if stateFile != "" {
		data, err := os.ReadFile(stateFile)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "error: reading state file: %v\n", err)
			return 2
		}
		serialized = data
	}

	listener := &smokeListener{logger: logger}

	resources := ticl.SystemResources{Logger: logger}
	client, err := ticl.Create(resources, clientType, appName, serialized, listener, ticl.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating client: %v\n", err)
		return 2
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	client.RegisterOutboundListener(func() {
		drainOutbound(client, out, logger, verbose)
	})

	drainOutbound(client, out, logger, verbose)

	reader := bufio.NewReader(os.Stdin)
	for {
		msg, err := readFramed(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading framed message: %v\n", err)
			return 1
		}
		if verbose {
			logger.Debug("inbound message", "bytes", len(msg))
		}
		if err := client.HandleInboundMessage(msg); err != nil {
			fmt.Fprintf(os.Stderr, "error: handling inbound message: %v\n", err)
			return 1
		}
		drainOutbound(client, out, logger, verbose)
	}
	return 0
}

// drainOutbound keeps taking outbound messages until the client has
// nothing left to say, writing each as a 4-byte big-endian length
// prefix followed by the encoded bundle.
func drainOutbound(client *ticl.Client, out *bufio.Writer, logger *slog.Logger, verbose bool) {
	for {
		data, ok, err := client.TakeOutboundMessage()
		if err != nil {
			logger.Error("taking outbound message", "error", err)
			return
		}
		if !ok {
			return
		}
		if verbose {
			logger.Debug("outbound message", "bytes", len(data))
		}
		if err := writeFramed(out, data); err != nil {
			logger.Error("writing framed message", "error", err)
			return
		}
		out.Flush()
	}
}

func readFramed(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFramed(w *bufio.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// smokeListener logs every callback and acks every invalidation.
type smokeListener struct {
	logger *slog.Logger
}

func (l *smokeListener) Invalidate(inv ticl.Invalidation, ack ticl.AckFunc) {
	l.logger.Info("invalidate", "source", inv.ObjectID.Source, "name", string(inv.ObjectID.Name), "version", inv.Version)
	ack()
}

func (l *smokeListener) InvalidateAll(ack ticl.AckFunc) {
	l.logger.Info("invalidate all")
	ack()
}

func (l *smokeListener) SessionStatusChanged(acquired bool) {
	l.logger.Info("session status changed", "acquired", acquired)
}

func (l *smokeListener) RegistrationStateChanged(oid ticl.ObjectID, state ticl.ConfirmedState, reason ticl.RegistrationReason) {
	l.logger.Info("registration state changed", "source", oid.Source, "name", string(oid.Name), "state", state, "reason", reason)
}
