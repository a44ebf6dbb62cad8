package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob"

	spo "github.com/space-operator/spo-go"
	"github.com/space-operator/spo-go/internal/config"
	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/archive"
	"github.com/space-operator/spo-go/pkg/credential"
	"github.com/space-operator/spo-go/pkg/log"
	"github.com/space-operator/spo-go/pkg/rest"
	"github.com/space-operator/spo-go/pkg/signer"
	"github.com/space-operator/spo-go/pkg/ws"
)

type relay struct {
	cfg      *config.Config
	redis    *redis.Client
	creds    credential.Provider
	rest     *rest.Client
	conn     *ws.Conn
	signer   *signer.Keypair
	bucket   *blob.Bucket
	recorder *archive.Recorder
	finished chan struct{}
	quit     chan os.Signal
	wg       sync.WaitGroup
	once     sync.Once
}

var (
	ErrCreateCredentials = errors.New("failed to create credential provider")
	ErrOpenBucket        = errors.New("failed to open archive bucket")
	ErrConnect           = errors.New("failed to connect")
	ErrSubscribe         = errors.New("failed to subscribe")
	ErrNothingToDo       = errors.New(
		"neither a signer keypair nor a flow run id is configured",
	)
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	r := &relay{
		cfg:      cfg,
		finished: make(chan struct{}),
		quit:     make(chan os.Signal, 1),
	}
	r.setupLogging()

	if err := r.run(); err != nil {
		slog.Error("Relay failed", log.Error(err))
		os.Exit(1)
	}
}

func (r *relay) run() error {
	if r.cfg.SignerKeypair == "" && r.cfg.FlowRunID == "" {
		return ErrNothingToDo
	}
	defer r.shutdown()

	if err := r.initialize(); err != nil {
		return err
	}
	if err := r.connect(); err != nil {
		return err
	}
	if err := r.subscribe(); err != nil {
		return err
	}

	signal.Notify(r.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(r.quit)

	select {
	case <-r.quit:
		return nil
	case <-r.finished:
		return nil
	case <-r.conn.Done():
		return r.conn.Err()
	}
}

func (r *relay) setupLogging() {
	level, ok := logLevels[r.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(spo.Name, env, spo.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Relay starting",
		slog.String("log_level", r.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("ws_url", r.cfg.WSURL),
		slog.String("rest_url", r.cfg.RESTURL),
		slog.String("token_redis_addr", r.cfg.TokenRedis.Addr),
		slog.Int("token_redis_db", r.cfg.TokenRedis.DB),
		log.FlowRunID(r.cfg.FlowRunID),
		slog.String("archive_bucket_url", r.cfg.ArchiveBucketURL))
}

func (r *relay) initialize() error {
	if err := r.initializeCredentials(); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateCredentials, err)
	}

	if r.cfg.SignerKeypair != "" {
		kp, err := signer.FromBase58(r.cfg.SignerKeypair)
		if err != nil {
			return err
		}
		r.signer = kp
		slog.Info("Signing enabled",
			log.PublicKey(kp.PublicKey()))
	}

	if r.cfg.ArchiveBucketURL != "" {
		if err := r.initializeArchive(); err != nil {
			return fmt.Errorf("%w: %w", ErrOpenBucket, err)
		}
	}

	r.rest = rest.NewClient(r.cfg.RESTURL, r.cfg.RequestTimeout, r.creds)
	r.conn = ws.New(r.cfg.WSURL,
		ws.WithCredentials(r.creds),
		ws.WithSubmitter(r.rest),
	)
	return nil
}

func (r *relay) initializeCredentials() error {
	if r.cfg.TokenRedis.Addr == "" {
		r.creds = credential.Static(r.cfg.Token)
		return nil
	}

	r.redis = redis.NewClient(&redis.Options{
		Addr:     r.cfg.TokenRedis.Addr,
		Password: r.cfg.TokenRedis.Password,
		DB:       r.cfg.TokenRedis.DB,
	})
	creds, err := credential.NewRedis(r.redis, r.cfg.TokenRedis.Key)
	if err != nil {
		return err
	}
	r.creds = creds
	return nil
}

func (r *relay) initializeArchive() error {
	ctx, cancel := context.WithTimeout(
		context.Background(), r.cfg.RequestTimeout,
	)
	defer cancel()

	bucket, err := archive.OpenBucket(ctx, r.cfg.ArchiveBucketURL)
	if err != nil {
		return err
	}
	r.bucket = bucket

	w, err := archive.NewWriter(bucket, r.cfg.ArchivePrefix)
	if err != nil {
		return err
	}
	r.recorder = archive.NewRecorder(w)
	r.recorder.Start()
	return nil
}

func (r *relay) connect() error {
	ctx, cancel := context.WithTimeout(
		context.Background(), r.cfg.RequestTimeout,
	)
	defer cancel()

	if err := r.conn.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	select {
	case <-r.conn.Authenticated():
	case <-ctx.Done():
		slog.Warn("Authentication still pending")
	}
	if id, ok := r.conn.Identity(); ok {
		slog.Info("Session identity",
			slog.String("user_id", id.UserID))
	}
	return nil
}

func (r *relay) subscribe() error {
	ctx, cancel := context.WithTimeout(
		context.Background(), r.cfg.RequestTimeout,
	)
	defer cancel()

	if r.signer != nil {
		_, err := r.conn.SubscribeSignatureRequests(ctx, r.handleSignature)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSubscribe, err)
		}
	}

	if r.cfg.FlowRunID != "" {
		_, err := r.conn.SubscribeFlowRunEvents(ctx,
			api.FlowRunID(r.cfg.FlowRunID), r.cfg.FlowRunToken,
			r.handleFlowRunEvent,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSubscribe, err)
		}
	}
	return nil
}

func (r *relay) handleSignature(ev *api.Event) {
	req := ev.SignatureRequest
	if req == nil {
		return
	}
	if r.recorder != nil && req.FlowRunID != "" {
		r.recorder.Handle(ev)
	}
	if req.PublicKey != r.signer.PublicKey() {
		slog.Debug("Ignoring signature request for another key",
			log.PublicKey(req.PublicKey),
			log.FlowRunID(req.FlowRunID))
		return
	}

	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), r.cfg.RequestTimeout,
		)
		defer cancel()

		err := r.conn.SignAndSubmitSignature(ctx, req,
			r.signer.PublicKey(), r.signer,
		)
		if err != nil {
			slog.Error("Failed to answer signature request",
				slog.Int64("request_id", req.ID),
				log.FlowRunID(req.FlowRunID),
				log.Error(err))
		}
	})
}

func (r *relay) handleFlowRunEvent(ev *api.Event) {
	slog.Info("Flow run event",
		slog.String("event", string(ev.Kind)),
		log.FlowRunID(ev.PeekFlowRunID()))

	if r.recorder != nil {
		r.recorder.Handle(ev)
	}
	if ev.Kind == api.EventFlowFinish {
		var finish api.FlowFinishEvent
		if err := ev.Decode(&finish); err != nil {
			slog.Warn("Invalid flow finish event",
				log.Error(err))
		} else {
			slog.Info("Flow run finished",
				log.FlowRunID(finish.FlowRunID),
				slog.Int("not_run", len(finish.NotRun)),
				slog.String("output", finish.Output.String()))
		}
	}
	if ev.IsTerminal() && r.signer == nil {
		r.once.Do(func() {
			close(r.finished)
		})
	}
}

func (r *relay) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), r.cfg.ShutdownTimeout,
	)
	defer cancel()

	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.wg.Wait()

	if r.recorder != nil {
		if err := r.recorder.Flush(ctx); err != nil {
			slog.Error("Archive flush failed", log.Error(err))
		}
	}
	if r.bucket != nil {
		_ = r.bucket.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	slog.Info("Relay exited")
}
