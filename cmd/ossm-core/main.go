// Command ossm-core is the firmware core's process entrypoint: it loads
// configuration, brings up the motor adapter and direction GPIO, starts the
// motion-control tick loop and the motion orchestrator, and exposes the two
// remote transports plus the desktop GUI simulator bridge.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/config"
	"github.com/ossm-project/ossm-core/internal/logger"
	"github.com/ossm-project/ossm-core/internal/motioncontrol"
	"github.com/ossm-project/ossm-core/internal/motionstate"
	"github.com/ossm-project/ossm-core/internal/motor"
	"github.com/ossm-project/ossm-core/internal/orchestrator"
	"github.com/ossm-project/ossm-core/internal/pattern"
	"github.com/ossm-project/ossm-core/internal/remote"
	"github.com/ossm-project/ossm-core/internal/simulator"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to an ossm.yaml config file")
	useSimulatedMotor := flag.Bool("simulated-motor", false, "drive an in-memory fake motor instead of the real RS-485 drive")
	flag.Parse()

	fmt.Printf("ossm-core %s — single-axis reciprocating actuator firmware core\n", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		LogDir:     cfg.Logger.LogDir,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	simHub := simulator.NewHub(cfg.Simulator.Enabled)
	logger.SetBroadcaster(simHub.BroadcastLog)

	direction := initDirectionPin(cfg.Board.DirectionPin, cfg.Board.Enabled)
	defer direction.Close()

	motorAdapter, closeMotor := buildMotor(cfg, *useSimulatedMotor, direction)
	defer closeMotor()

	control := motioncontrol.New(motorAdapter, cfg.Motion, cfg.Motor)
	state := motionstate.New(cfg.Motion, control)
	executor := pattern.NewPatternExecutor()
	orch := orchestrator.New(state, executor, control, cfg.Motion)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startMotionControlLoop(ctx, control, cfg.Motion)
	go orch.Run(ctx)

	pairing := remote.NewPairingRegistry(uint32(cfg.Remote.OssmTargetID))
	watchdog := remote.NewHeartbeatWatchdog(
		time.Duration(cfg.Motion.MaxNoRemoteHeartbeatMS)*time.Millisecond,
		pairing.NewestHeartbeat,
		func() { state.SetEnabled(false) },
	)
	if err := watchdog.Start(); err != nil {
		logger.Get().Fatal("failed to start heartbeat watchdog", zap.Error(err))
	}
	defer watchdog.Stop()

	go runStringRemoteServer(ctx, cfg.Remote, state)
	go runBinaryRemoteServer(ctx, cfg.Remote, state, pairing)
	go runSimulatorServer(ctx, cfg, state, simHub)

	logger.Get().Info("ossm-core started", zap.String("version", Version))
	<-ctx.Done()
	logger.Get().Info("shutting down")
}

// startMotionControlLoop runs the motion-control tick on its own goroutine,
// driven by a fixed-period ticker — the closest userspace analogue to the
// hardware timer interrupt that drives it on the embedded board.
func startMotionControlLoop(ctx context.Context, control *motioncontrol.MotionControl, motion config.Motion) {
	interval := time.Duration(motion.LoopUpdateIntervalMS) * time.Millisecond
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				control.Tick(now)
			}
		}
	}()
}

func buildMotor(cfg *config.Config, simulated bool, direction motor.DirectionSetter) (motioncontrol.Motor, func() error) {
	if simulated {
		logger.Get().Info("using simulated motor adapter")
		m := motor.NewSimulated()
		return m, func() error { return nil }
	}

	driver := motor.NewRTUDriver(
		cfg.Motor.Port,
		cfg.Motor.OperatingBaudRate,
		1,
		time.Duration(cfg.Motor.MinConsecutiveWriteMS)*time.Millisecond,
	).WithDirectionPin(direction)
	err := driver.Open()
	if err == nil {
		// Opening the port does not talk to the drive; one register read
		// confirms that it answers at the operating baud rate.
		_, err = driver.ReadRegister(motor.RegDeviceAddress)
	}
	if err != nil {
		logger.Get().Warn("initial motor connection failed, attempting baud-rate reprogramming",
			zap.Error(err), zap.Int("stock_baud", cfg.Motor.StockBaudRate))
		driver.Close()
		reprogramAndReboot(cfg)
	}
	if err := driver.ApplyDefaultTuning(); err != nil {
		logger.Get().Error("failed to apply default motor tuning", zap.Error(err))
	}
	if err := driver.Home(); err != nil {
		logger.Get().Fatal("homing failed, refusing to start motion control", zap.Error(err))
	}
	return driver, driver.Close
}

// reprogramAndReboot recovers from a drive still at its stock baud rate: a
// one-shot re-programming sequence followed by a reboot request to the
// operator, since the drive only picks up the new rate after power-cycling.
func reprogramAndReboot(cfg *config.Config) {
	stockDriver := motor.NewRTUDriver(cfg.Motor.Port, cfg.Motor.StockBaudRate, 1, 2*time.Millisecond)
	defer stockDriver.Close()
	if err := stockDriver.Open(); err != nil {
		logger.Get().Fatal("motor unreachable at both operating and stock baud rates", zap.Error(err))
	}
	if err := stockDriver.Reprogram(motor.BaudRate(cfg.Motor.OperatingBaudRate)); err != nil {
		logger.Get().Fatal("motor baud-rate reprogramming failed", zap.Error(err))
	}
	logger.Get().Fatal("motor reprogrammed to operating baud rate, reboot required")
}

// runStringRemoteServer accepts line-based TCP connections speaking the
// `cmd:action[:value]` string command protocol.
func runStringRemoteServer(ctx context.Context, cfg config.Remote, state *motionstate.State) {
	handler := remote.NewCommandHandler(state, cfg.MaxCommandLength)

	ln, err := net.Listen("tcp", cfg.StringPort)
	if err != nil {
		logger.Get().Error("string remote listener failed to start", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Get().Warn("string remote accept failed", zap.Error(err))
			continue
		}
		go handleStringRemoteConn(conn, handler)
	}
}

func handleStringRemoteConn(conn net.Conn, handler *remote.CommandHandler) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := handler.Handle(scanner.Text())
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

// runBinaryRemoteServer accepts the fixed-size binary packet protocol over
// UDP, the proprietary low-latency link's natural transport, and sends
// periodic heartbeat packets back to every paired peer.
func runBinaryRemoteServer(ctx context.Context, cfg config.Remote, state *motionstate.State, pairing *remote.PairingRegistry) {
	addr, err := net.ResolveUDPAddr("udp", cfg.BinaryPort)
	if err != nil {
		logger.Get().Error("binary remote address invalid", zap.Error(err))
		return
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Get().Error("binary remote listener failed to start", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go sendHeartbeats(ctx, conn, cfg, pairing)

	buf := make([]byte, remote.PacketSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		pkt, err := remote.DecodePacket(buf[:n])
		if err != nil {
			logger.Get().Warn("dropping malformed remote packet", zap.Error(err))
			continue
		}

		if paired, reply := pairing.Observe(src.String(), pkt); paired && reply != nil {
			conn.WriteToUDP(reply.Encode(), src)
		}

		if err := remote.ApplyCommand(state, pkt); err != nil {
			logger.Get().Warn("dropping unrecognised remote command", zap.Error(err))
		}
	}
}

// sendHeartbeats pushes a heartbeat packet to every paired peer on the
// configured cadence so remotes can detect a dead link from their side too.
func sendHeartbeats(ctx context.Context, conn *net.UDPConn, cfg config.Remote, pairing *remote.PairingRegistry) {
	ticker := time.NewTicker(time.Duration(cfg.HeartbeatSendMS) * time.Millisecond)
	defer ticker.Stop()

	hb := remote.Packet{Heartbeat: true, Connected: true, Target: uint32(cfg.OssmTargetID)}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, peer := range pairing.Peers() {
				dst, err := net.ResolveUDPAddr("udp", peer.SourceAddr)
				if err != nil {
					continue
				}
				conn.WriteToUDP(hb.Encode(), dst)
			}
		}
	}
}

// runSimulatorServer mounts the websocket bridge plus the JSON endpoints
// the desktop GUI simulator polls as a fallback, and periodically pushes a
// state snapshot so the simulator stays live even without explicit writes.
func runSimulatorServer(ctx context.Context, cfg *config.Config, state *motionstate.State, hub *simulator.Hub) {
	if !cfg.Simulator.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/simulator/ws", hub.HandleWebSocket)
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		body, err := state.GetMotionState().AsJSON(cfg.Remote.MaxStateJSONLen)
		if err != nil {
			logger.Get().Warn("state JSON overflowed buffer", zap.Error(err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/patterns", func(w http.ResponseWriter, r *http.Request) {
		body, err := pattern.GetAllPatternsJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})

	srv := &http.Server{Addr: cfg.Simulator.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	go broadcastStateLoop(ctx, state, hub)

	logger.Get().Info("simulator bridge listening", zap.String("addr", cfg.Simulator.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Get().Error("simulator server stopped", zap.Error(err))
	}
}

func broadcastStateLoop(ctx context.Context, state *motionstate.State, hub *simulator.Hub) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := state.GetMotionState()
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(mustStateJSON(snap)), &payload); err == nil {
				hub.Broadcast(simulator.MessageTypeState, payload)
			}
			hub.Broadcast(simulator.MessageTypePatterns, pattern.ListCatalogue())
		}
	}
}

func mustStateJSON(snap motionstate.Snapshot) string {
	body, err := snap.AsJSON(0)
	if err != nil {
		return "{}"
	}
	return body
}
