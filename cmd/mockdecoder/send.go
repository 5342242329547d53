package main

import (
	"bytes"
	"fmt"
	"net"

	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
	"github.com/hybridsix/chronocore-rs-sub001/internal/udpdecoder"
)

// sendPass dials addr over UDP and writes a single marshaled Pass packet.
// Mirrors the teacher client's one-shot "resolve, dial, write" pattern
// (network.Client.ConnectAndRun's connection setup) without the
// reconnect-loop machinery a connectionless fire-and-forget sender doesn't
// need.
func sendPass(addr string, p model.Pass) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	var buf bytes.Buffer
	if err := udpdecoder.MarshalPass(&buf, p); err != nil {
		return fmt.Errorf("encoding pass: %w", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}
