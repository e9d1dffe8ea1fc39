// Command coordinatord runs one node of the management-plane coordinator:
// it loads its configuration, wires the peer roster, lock service, and
// Multi-Phase Dispatch Engine together, and serves incoming phase RPCs
// over gRPC while accepting local operations from the cooperative task
// runtime (SPEC_FULL.md §§4.1-4.6).
//
// This binary only wires components; every domain collaborator (volume
// creation, snapshot mechanics, brick translators) is out of scope per
// spec.md §1, so PreValidate/BrickOp/Commit/PostValidate are left nil
// (always-succeeding no-ops) except where internal/volstore and
// internal/brickop's in-memory stand-ins give a concrete commit path to
// exercise for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/joeycumines/clustermgmt/internal/brickop"
	"github.com/joeycumines/clustermgmt/internal/collaborators"
	"github.com/joeycumines/clustermgmt/internal/config"
	"github.com/joeycumines/clustermgmt/internal/dispatch"
	"github.com/joeycumines/clustermgmt/internal/lockservice"
	"github.com/joeycumines/clustermgmt/internal/logging"
	"github.com/joeycumines/clustermgmt/internal/roster"
	"github.com/joeycumines/clustermgmt/internal/syncop"
	"github.com/joeycumines/clustermgmt/internal/task"
	"github.com/joeycumines/clustermgmt/internal/transport"
	"github.com/joeycumines/clustermgmt/internal/transport/grpcclient"
	"github.com/joeycumines/clustermgmt/internal/volstore"
	"github.com/joeycumines/clustermgmt/internal/wireops"
	"github.com/joeycumines/logiface"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (unset uses built-in defaults)")
	selfUUID := flag.String("uuid", "", "this node's UUID (defaults to a freshly generated one)")
	originateOp := flag.String("originate-op", "", "if set, instead of serving run one MGMT_V3 transaction with this operation code and exit")
	originateDict := flag.String("originate-dict", "{}", "JSON dict for -originate-op's transaction (is_synctasked is set automatically)")
	originateTx := flag.String("originate-tx", "", "transaction ID for -originate-op (defaults to a freshly generated one)")
	flag.Parse()

	if err := run(*configPath, *selfUUID, *originateOp, *originateDict, *originateTx); err != nil {
		fmt.Fprintln(os.Stderr, "coordinatord:", err)
		os.Exit(1)
	}
}

func run(configPath, self, originateOp, originateDict, originateTx string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level := logiface.LevelInformational
	if cfg.Logging.Level == "debug" {
		level = logiface.LevelDebug
	}
	log := logging.New(&logging.Config{Level: level, Pretty: cfg.Logging.Pretty})

	if self == "" {
		self = uuid.NewString()
	}

	rt := task.NewRuntime(&task.Config{Workers: cfg.Worker.Count, QueueSize: cfg.Worker.QueueSize})
	defer rt.Stop()

	rst := roster.New()
	locks := lockservice.New(&lockservice.Config{Timeout: cfg.LockTimeout()}, log)

	peerTransport := grpcclient.NewTransport(func(peerUUID string) (string, error) {
		p, ok := rst.Get(peerUUID)
		if !ok {
			return "", fmt.Errorf("coordinatord: unknown peer %q", peerUUID)
		}
		addr, _ := p.RPCHandle.(string)
		if addr == "" {
			return "", fmt.Errorf("coordinatord: peer %q has no known address", peerUUID)
		}
		return addr, nil
	}, grpc.WithContextDialer(grpcclient.DialWithTimeout(cfg.DialTimeout(), grpcclient.DialTCP)))
	defer peerTransport.Close()

	vols := volstore.NewInMemory()
	bricks := brickop.NewStatic(nil)

	engine := &dispatch.Engine{
		SelfUUID:      self,
		Roster:        rst,
		Locks:         locks,
		Transport:     peerTransport,
		Collaborators: volumeCollaborators(vols, bricks),
		Log:           log,
		SyncOp:        &syncop.Config{MaxConcurrency: cfg.RPC.MaxInFlightPerPhase},
		Quorum:        dispatch.QuorumPolicy{Enabled: cfg.Quorum.Enabled, MinPeerFraction: cfg.Quorum.MinPeerFraction},
		Runtime:       rt,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	watchRosterChanges(watchCtx, rst, log)

	if originateOp != "" {
		return originate(engine, originateOp, originateDict, self, originateTx, log)
	}

	handler := transport.HandlerFunc(func(ctx context.Context, req wireops.Request) (wireops.Response, error) {
		return handleIncoming(engine, req), nil
	})

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("coordinatord: listen on %q: %w", cfg.Listen, err)
	}

	srv := grpc.NewServer()
	grpcclient.RegisterServer(srv, handler)

	log.Info().Str("addr", cfg.Listen).Str("uuid", self).Log("coordinatord listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(lis) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		return nil
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// watchRosterChanges subscribes to roster generation-change notifications
// and logs each one, for operators watching this node's membership view
// evolve. It runs until ctx is cancelled.
func watchRosterChanges(ctx context.Context, rst *roster.Roster, log *logging.Logger) {
	ch := make(chan int64, 1)
	cancel := rst.Watch(ctx, ch)
	go func() {
		defer cancel()
		for {
			select {
			case gen, ok := <-ch:
				if !ok {
					return
				}
				log.Info().Int64("generation", gen).Log("roster generation changed")
			case <-ctx.Done():
				return
			}
		}
	}()
}

// originate runs a single transaction through engine.Execute and prints its
// result, acting as this binary's CLI-originator entry point: the
// dispatch engine's only production caller besides handleIncoming's
// passive peer-receiving side.
func originate(engine *dispatch.Engine, op, dictJSON, self, txID string, log *logging.Logger) error {
	dict, err := wireops.Decode([]byte(dictJSON))
	if err != nil {
		return fmt.Errorf("coordinatord: -originate-dict: %w", err)
	}
	dict["is_synctasked"] = true

	if txID == "" {
		txID = uuid.NewString()
	}

	res := engine.Execute(context.Background(), wireops.OperationCode(op), dict, self, txID)
	if res.OpRet != 0 {
		return fmt.Errorf("coordinatord: %s failed: errno=%d %s", op, res.OpErrno, res.OpErrStr)
	}
	log.Info().Str("op", op).Str("tx", txID).Log("transaction completed")
	return nil
}

// handleIncoming is the server-side counterpart to dispatch.Engine.Execute,
// answering one phase request from the peer that originated the
// transaction. MGMT_V3_LOCK acquires the request's lock entries in this
// node's lock service (failing on conflict) and MGMT_V3_UNLOCK releases
// them best-effort; MGMT_V3_COMMIT runs the Commit collaborator when one is
// set. Every other phase is acknowledged as successful without running a
// collaborator.
func handleIncoming(e *dispatch.Engine, req wireops.Request) wireops.Response {
	switch req.Phase {
	case wireops.PhaseLock:
		entries := dispatch.LockEntriesFromDict(req.Dict)
		if err := e.Locks.AcquireMany(entries, req.OriginatorUUID); err != nil {
			return wireops.Response{Phase: req.Phase, OpRet: -1, OpErrno: -1, ErrStr: err.Error()}
		}
		return wireops.Response{Phase: req.Phase, Dict: wireops.NewDict()}
	case wireops.PhaseUnlock:
		entries := dispatch.LockEntriesFromDict(req.Dict)
		_ = e.Locks.ReleaseMany(entries, req.OriginatorUUID)
		return wireops.Response{Phase: req.Phase, Dict: wireops.NewDict()}
	case wireops.PhaseCommit:
		if e.Collaborators.Commit != nil {
			if ok, errStr, errno := e.Collaborators.Commit(context.Background(), req.OperationCode, req.Dict); !ok {
				return wireops.Response{Phase: req.Phase, OpRet: -1, OpErrno: errno, ErrStr: errStr}
			}
		}
		return wireops.Response{Phase: req.Phase, Dict: wireops.NewDict()}
	default:
		return wireops.Response{Phase: req.Phase, Dict: wireops.NewDict()}
	}
}

// volumeCollaborators wires a minimal, concrete commit path — writing the
// incoming volume's dict-derived name/blob through vols — so the dispatch
// engine has at least one non-nil collaborator to exercise end to end.
// Pre-validate, brick-op and post-validate are left nil no-ops: their
// domain logic is explicitly out of scope per spec.md §1.
func volumeCollaborators(vols volstore.Repository, bricks brickop.Registry) collaborators.Set {
	return collaborators.Set{
		Commit: func(ctx context.Context, op wireops.OperationCode, dict wireops.Dict) (bool, string, int32) {
			name, _ := dict.GetString("volname1")
			if name == "" {
				return true, "", 0
			}
			blob, err := dict.Encode()
			if err != nil {
				return false, err.Error(), -1
			}
			if err := vols.Put(ctx, name, blob); err != nil {
				return false, err.Error(), -1
			}
			_, _ = bricks.Translator(name) // looked up for parity with a real brick-op dispatch; absence is not an error here
			return true, "", 0
		},
	}
}
