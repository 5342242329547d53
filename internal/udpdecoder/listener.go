package udpdecoder

import (
	"bytes"
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/hybridsix/chronocore-rs-sub001/internal/logging"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
)

// ReadBufferSize mirrors the teacher client's fixed-size UDP read buffer.
const ReadBufferSize = 4 * 1024

// IngestFunc is the engine entry point a Listener forwards decoded passes
// to. It is a flattened form of engine.Engine.IngestPass (cmd/chronocored
// adapts one to the other), so udpdecoder never imports the engine package
// and stays a leaf transport adapter.
type IngestFunc func(model.Pass) (accepted bool, reason string, err error)

// Listener receives UDP packets carrying Pass reports and forwards each to
// Ingest. One Listener serves one UDP socket; device_id in each packet
// identifies which physical decoder it came from.
type Listener struct {
	Ingest IngestFunc

	conn *net.UDPConn
	log  zerolog.Logger
}

// NewListener constructs a Listener. Call Run to start serving.
func NewListener(ingest IngestFunc) *Listener {
	return &Listener{Ingest: ingest, log: logging.New("udpdecoder")}
}

// Run binds addr and serves until ctx is cancelled. Unlike the teacher's
// ConnectAndRun (an outbound client with a retry-and-reconnect loop), this
// is a server: bind failures are fatal since nothing will ever connect to a
// socket that never opened, but a read error on an established datagram
// socket just logs and continues — one malformed packet must never bring
// down ingestion for every other decoder sharing the port.
func (l *Listener) Run(ctx context.Context, addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	l.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.log.Info().Str("addr", addr).Msg("udp decoder listener started")

	var readArray [ReadBufferSize]byte
	for {
		n, raddr, err := conn.ReadFromUDP(readArray[:])
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			l.log.Warn().Err(err).Msg("udp read error, continuing")
			continue
		}
		if n == ReadBufferSize {
			l.log.Warn().Str("peer", raddr.String()).Msg("packet filled read buffer, may be truncated")
		}
		l.handlePacket(readArray[:n], raddr)
	}
}

func (l *Listener) handlePacket(data []byte, raddr *net.UDPAddr) {
	buf := bytes.NewBuffer(data)
	msgType, err := buf.ReadByte()
	if err != nil {
		l.log.Warn().Str("peer", raddr.String()).Msg("empty packet, dropping")
		return
	}
	if msgType != PassMsgType {
		l.log.Warn().Str("peer", raddr.String()).Int("msg_type", int(msgType)).Msg("unrecognised msg-type")
		return
	}

	pass, err := UnmarshalPass(buf)
	if err != nil {
		l.log.Warn().Err(err).Str("peer", raddr.String()).Msg("malformed pass packet, dropping")
		return
	}

	accepted, reason, err := l.Ingest(pass)
	if err != nil {
		l.log.Error().Err(err).Str("tag", pass.Tag).Msg("ingest failed")
		return
	}
	l.log.Debug().Str("tag", pass.Tag).Bool("accepted", accepted).Str("reason", reason).Msg("pass ingested")
}
