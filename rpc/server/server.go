package server

import (
	"fmt"
	"io"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dSO/lib/eviction"
	"github.com/ValentinKolb/dSO/lib/locks"
	"github.com/ValentinKolb/dSO/lib/objects"
	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/serializer"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// Service names, used as the request path by the transport
const (
	ServiceLocks = "locks"
	ServiceMaps  = "maps"
)

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server (serializer %s)", serializer.Name())
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		services:   xsync.NewMapOf[string, IRPCServerAdapter](),
	}
}

// RPCServer serves the lock coordinator and the evictable maps
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	services   *xsync.MapOf[string, IRPCServerAdapter]

	locks      *locks.Manager
	lockStats  *locks.MetricsStats
	evictor    *eviction.Manager
	evictStage *eviction.Stage
	evictStats *eviction.Stats
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(service string, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Get appropriate service
		adapter, ok := s.services.Load(service)

		// Case service does not exist -> error
		if !ok {
			respMsg = common.NewErrorResponse(fmt.Sprintf("service %q not found", service))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else if msg.MsgType == common.MsgTDisconnect {
			// a disconnect clears the client in every service
			respMsg = common.NewDisconnectResponse(s.disconnect(msg.ClientID))
		} else {
			// Let the adapter handle the request
			respMsg = adapter.Handle(&msg)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize %s response: %v", msg.MsgType, err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// disconnect drops a client from all services
func (s *RPCServer) disconnect(clientID string) int {
	if clientID == "" {
		return 0
	}
	cleared := 0
	s.services.Range(func(name string, adapter IRPCServerAdapter) bool {
		cleared += adapter.Disconnect(clientID)
		return true
	})
	Logger.Infof("client %s disconnected (%d items cleared)", clientID, cleared)
	return cleared
}

// writeMetrics writes the lock, eviction and process metrics
func (s *RPCServer) writeMetrics(w io.Writer) {
	s.lockStats.WritePrometheus(w)
	s.evictStats.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

func (s *RPCServer) evictionConfig() eviction.Config {
	cfg := eviction.DefaultConfig()
	if s.config.Eviction.SleepSeconds > 0 {
		cfg.SleepInterval = s.config.Eviction.SleepInterval()
	}
	cfg.PeriodicEnabled = s.config.Eviction.Periodic
	cfg.ElementTTITTLEnabled = s.config.Eviction.ElementTTITTL
	cfg.LoggingEnabled = s.config.Eviction.Logging
	return cfg
}

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	// LOCKS

	mail := NewMailboxes()
	s.lockStats = locks.NewMetricsStats()
	s.locks = locks.NewManager(mail, &locks.Options{
		Greedy: s.config.GreedyLocks,
		Stats:  s.lockStats,
	})
	s.services.Store(ServiceLocks, NewLockServerAdapter(s.locks, mail))

	// MAPS

	objs := objects.NewManager(nil)
	clients := objects.NewClientStates()
	s.evictStats = eviction.NewStats()
	s.evictor = eviction.NewManager(objs, objs, clients, objs, s.evictionConfig(), s.evictStats)
	s.evictStage = eviction.NewStage(s.evictor.Evict)
	s.evictor.SetSink(s.evictStage)
	s.services.Store(ServiceMaps, NewMapServerAdapter(objs, clients, s.evictor))
	s.evictor.Start()

	Logger.Infof("dSO setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()
	s.transport.RegisterMetrics(s.writeMetrics)

	return nil
}

// close stops the evictor and the lock timeouts
func (s *RPCServer) close() {
	s.evictor.Stop()
	s.evictStage.Close()
	s.locks.Close()
	Logger.Infof("dSO stopped")
}

// Serve starts the RPC server
// This function will also initialize the services and start the transport
// layer. It returns when the transport stops.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.close()
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport, which makes Serve return
func (s *RPCServer) Shutdown() error {
	return s.transport.Shutdown()
}
