// Package ipc carries control requests between the CLI and the daemon over
// a JSON-RPC Unix socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"time"

	"voiceforge/internal/logging"
	"voiceforge/internal/queue"
	"voiceforge/internal/stage"
)

// DaemonState is what the server queries to answer status requests.
type DaemonState interface {
	Health(ctx context.Context) []stage.Health
}

// Server answers CLI requests on the daemon's Unix socket.
type Server struct {
	socketPath string
	version    string
	startedAt  time.Time
	store      *queue.Store
	state      DaemonState
	shutdown   chan<- struct{}
	logger     *slog.Logger

	listener net.Listener
}

// NewServer builds an unstarted server. shutdown receives one value when a
// shutdown request arrives.
func NewServer(socketPath, version string, store *queue.Store, state DaemonState, shutdown chan<- struct{}, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		version:    version,
		startedAt:  time.Now(),
		store:      store,
		state:      state,
		shutdown:   shutdown,
		logger:     logging.NewComponentLogger(logger, "ipc"),
	}
}

// Start binds the socket and serves connections until Stop.
func (s *Server) Start() error {
	// A previous unclean shutdown can leave the socket file behind.
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, &daemonService{server: s}); err != nil {
		listener.Close()
		return fmt.Errorf("register rpc service: %w", err)
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					s.logger.Warn("accept failed", logging.Error(err))
				}
				return
			}
			go server.ServeCodec(jsonrpc.NewServerCodec(conn))
		}
	}()

	s.logger.Info("ipc server listening", logging.String("socket", s.socketPath))
	return nil
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

// daemonService is the RPC receiver.
type daemonService struct {
	server *Server
}

func (d *daemonService) Ping(_ *PingArgs, reply *PingReply) error {
	reply.PID = os.Getpid()
	reply.Version = d.server.version
	return nil
}

func (d *daemonService) Status(_ *StatusArgs, reply *StatusReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := d.server.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("queue counts: %w", err)
	}

	reply.PID = os.Getpid()
	reply.Version = d.server.version
	reply.StartedAt = d.server.startedAt.UTC().Format(time.RFC3339)
	reply.QueueCounts = make(map[string]int, len(counts))
	for status, count := range counts {
		reply.QueueCounts[string(status)] = count
	}
	for _, health := range d.server.state.Health(ctx) {
		reply.StageHealths = append(reply.StageHealths, StageHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	return nil
}

func (d *daemonService) Shutdown(_ *ShutdownArgs, reply *ShutdownReply) error {
	reply.Acknowledged = true
	select {
	case d.server.shutdown <- struct{}{}:
	default:
	}
	return nil
}
