package audio

import (
	"crypto/subtle"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	startMarker = 0xFFFFFFFF
	endMarker   = 0x00000000

	// Cap on buffered remote audio before the oldest bytes are dropped.
	maxRemoteBacklog = 10 * time.Second
	maxChunkSize     = 1 << 20
)

// RemoteSource receives PCM from one authenticated capture client at a time
// over a stream connection. A client sends the shared token, receives a
// 16-byte client id, then brackets each transmission with a start and an end
// marker; in between every chunk is a big-endian length followed by
// little-endian int16 PCM in the configured format.
//
// ReadFrame is paced at the frame cadence and yields silence while no audio is
// buffered, so silence timers keep running between transmissions.
type RemoteSource struct {
	listener   net.Listener
	token      string
	format     Format
	frameBytes int
	ticker     *time.Ticker

	mu      sync.Mutex
	pending []byte
	client  uuid.UUID

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ListenRemote starts a TLS listener for remote capture clients.
func ListenRemote(addr, certFile, keyFile, token string, f Format, frameSize int) (*RemoteSource, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate and key: %w", err)
	}
	listener, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return nil, fmt.Errorf("failed to start TLS listener: %w", err)
	}
	return NewRemoteSource(listener, token, f, frameSize), nil
}

// NewRemoteSource serves capture clients from an existing listener.
func NewRemoteSource(l net.Listener, token string, f Format, frameSize int) *RemoteSource {
	rs := &RemoteSource{
		listener:   l,
		token:      token,
		format:     f,
		frameBytes: frameSize * f.Channels * f.SampleWidth,
		ticker:     time.NewTicker(f.FramePeriod(frameSize)),
		done:       make(chan struct{}),
	}
	rs.wg.Add(1)
	go rs.acceptLoop()
	return rs
}

// Addr is the listening address.
func (rs *RemoteSource) Addr() net.Addr { return rs.listener.Addr() }

// ReadFrame waits one frame period and returns the next buffered frame, or a
// silent frame when the client is quiet or absent.
func (rs *RemoteSource) ReadFrame() (Frame, error) {
	select {
	case <-rs.done:
		return Frame{}, ErrStreamClosed
	case <-rs.ticker.C:
	}

	data := make([]byte, rs.frameBytes)
	rs.mu.Lock()
	if len(rs.pending) >= rs.frameBytes {
		copy(data, rs.pending[:rs.frameBytes])
		rs.pending = rs.pending[rs.frameBytes:]
	}
	rs.mu.Unlock()
	return Frame{Data: data, Format: rs.format, Captured: time.Now()}, nil
}

// Client is the id handed to the most recent capture client, or uuid.Nil.
func (rs *RemoteSource) Client() uuid.UUID {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.client
}

// Close stops accepting clients and unblocks ReadFrame.
func (rs *RemoteSource) Close() error {
	var err error
	rs.closeOnce.Do(func() {
		close(rs.done)
		rs.ticker.Stop()
		err = rs.listener.Close()
		rs.wg.Wait()
	})
	return err
}

func (rs *RemoteSource) acceptLoop() {
	defer rs.wg.Done()
	for {
		conn, err := rs.listener.Accept()
		if err != nil {
			select {
			case <-rs.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("Failed to accept connection", "error", err)
			continue
		}
		// One capture client at a time; the next waits in the backlog.
		rs.handleConnection(conn)
	}
}

func (rs *RemoteSource) handleConnection(conn net.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-rs.done:
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	tokenBuffer := make([]byte, len(rs.token))
	if _, err := io.ReadFull(conn, tokenBuffer); err != nil {
		slog.Error("Failed to read token from client", "error", err, "remoteAddr", conn.RemoteAddr())
		return
	}
	if subtle.ConstantTimeCompare(tokenBuffer, []byte(rs.token)) != 1 {
		slog.Warn("Invalid token received", "remoteAddr", conn.RemoteAddr())
		return
	}

	clientID := uuid.New()
	if _, err := conn.Write(clientID[:]); err != nil {
		slog.Error("Failed to send client ID", "error", err, "clientID", clientID)
		return
	}
	rs.mu.Lock()
	rs.client = clientID
	rs.mu.Unlock()
	slog.Info("Remote capture client connected", "clientID", clientID, "remoteAddr", conn.RemoteAddr())

	receiving := false
	marker := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, marker); err != nil {
			if errors.Is(err, io.EOF) {
				slog.Debug("Client disconnected", "clientID", clientID)
			} else {
				slog.Debug("Failed to read marker", "error", err, "clientID", clientID)
			}
			return
		}

		switch value := binary.BigEndian.Uint32(marker); {
		case value == startMarker:
			receiving = true
			slog.Debug("Started receiving transmission", "clientID", clientID)
		case value == endMarker:
			receiving = false
			slog.Debug("Finished receiving transmission", "clientID", clientID)
		case receiving:
			if value > maxChunkSize {
				slog.Warn("Dropping client with oversized chunk", "size", value, "clientID", clientID)
				return
			}
			chunk := make([]byte, value)
			if _, err := io.ReadFull(conn, chunk); err != nil {
				slog.Error("Failed to read chunk data", "error", err, "clientID", clientID)
				return
			}
			rs.enqueue(chunk)
		default:
			slog.Warn("Chunk received outside a transmission", "clientID", clientID)
			return
		}
	}
}

func (rs *RemoteSource) enqueue(chunk []byte) {
	limit := rs.format.BytesPerSecond() * int(maxRemoteBacklog/time.Second)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.pending = append(rs.pending, chunk...)
	if over := len(rs.pending) - limit; over > 0 {
		align := rs.format.Channels * rs.format.SampleWidth
		over += (align - over%align) % align
		rs.pending = rs.pending[over:]
	}
}
