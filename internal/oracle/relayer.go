package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"confidential-market/internal/confidential"

	"go.uber.org/zap"
)

// Decrypter reveals a handle to an authorized requester.
type Decrypter interface {
	Decrypt(ctx context.Context, h confidential.Handle, requester string) (uint64, error)
}

// RelayerOptions tunes delivery of callbacks.
type RelayerOptions struct {
	// Delay before a request is processed.
	Delay time.Duration
	// Attempts is the number of deliveries tried while Retryable reports true.
	Attempts int
	// Backoff between deliveries.
	Backoff time.Duration
	// Retryable classifies sink errors worth another delivery.
	Retryable func(error) bool
	// QueueSize bounds pending requests.
	QueueSize int
}

type relayJob struct {
	requestID uint64
	handles   []confidential.Handle
}

// LocalRelayer is an in-process decryption oracle. It decrypts through a
// Decrypter using its own access account, signs the result and delivers it
// to the CallbackSink from its own goroutine.
type LocalRelayer struct {
	decrypter Decrypter
	account   string
	signer    *ProofSigner
	sink      CallbackSink
	opts      RelayerOptions
	jobs      chan relayJob
	logger    *zap.Logger
}

// NewLocalRelayer creates a relayer. Call SetSink before Run.
func NewLocalRelayer(decrypter Decrypter, account string, signer *ProofSigner, opts RelayerOptions, logger *zap.Logger) *LocalRelayer {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.Retryable == nil {
		opts.Retryable = func(error) bool { return false }
	}
	return &LocalRelayer{
		decrypter: decrypter,
		account:   account,
		signer:    signer,
		opts:      opts,
		jobs:      make(chan relayJob, opts.QueueSize),
		logger:    logger,
	}
}

// SetSink registers the callback entry point.
func (r *LocalRelayer) SetSink(sink CallbackSink) {
	r.sink = sink
}

// Account is the access-control identity the relayer decrypts with.
func (r *LocalRelayer) Account() string {
	return r.account
}

// RequestDecryption queues the handles and returns the assigned request id.
func (r *LocalRelayer) RequestDecryption(ctx context.Context, handles []confidential.Handle) (uint64, error) {
	if len(handles) == 0 {
		return 0, ErrNoHandles
	}
	id, err := newRequestID()
	if err != nil {
		return 0, err
	}
	job := relayJob{requestID: id, handles: append([]confidential.Handle(nil), handles...)}
	select {
	case r.jobs <- job:
	default:
		return 0, ErrQueueFull
	}
	r.logger.Debug("decryption request queued", zap.Uint64("request_id", id), zap.Int("handles", len(handles)))
	return id, nil
}

// Run processes queued requests until ctx is cancelled.
func (r *LocalRelayer) Run(ctx context.Context) error {
	r.logger.Info("relayer started", zap.Int("attempts", r.opts.Attempts), zap.Duration("delay", r.opts.Delay))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relayer stopped")
			return ctx.Err()
		case job := <-r.jobs:
			r.process(ctx, job)
		}
	}
}

func (r *LocalRelayer) process(ctx context.Context, job relayJob) {
	if !sleepCtx(ctx, r.opts.Delay) {
		return
	}

	values, err := r.decrypt(ctx, job)
	if err != nil {
		r.logger.Error("decryption failed", zap.Uint64("request_id", job.requestID), zap.Error(err))
		return
	}
	clearValues := EncodeClearValues(values)
	proof, err := r.signer.Sign(job.requestID, job.handles, clearValues)
	if err != nil {
		r.logger.Error("signing failed", zap.Uint64("request_id", job.requestID), zap.Error(err))
		return
	}

	if r.sink == nil {
		r.logger.Error("no callback sink registered", zap.Uint64("request_id", job.requestID))
		return
	}
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		err = r.sink.HandleCallback(ctx, job.requestID, clearValues, proof)
		if err == nil {
			r.logger.Info("callback delivered", zap.Uint64("request_id", job.requestID), zap.Int("attempt", attempt))
			return
		}
		if !r.opts.Retryable(err) || attempt == r.opts.Attempts {
			break
		}
		if !sleepCtx(ctx, r.opts.Backoff) {
			return
		}
	}
	r.logger.Warn("callback rejected", zap.Uint64("request_id", job.requestID), zap.Error(err))
}

// decrypt reads every handle of job. Requests are queued before the
// requesting transaction commits, so handles and grants that are not visible
// yet are retried like sink errors.
func (r *LocalRelayer) decrypt(ctx context.Context, job relayJob) ([]uint64, error) {
	values := make([]uint64, len(job.handles))
	var err error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		for i, h := range job.handles {
			if values[i], err = r.decrypter.Decrypt(ctx, h, r.account); err != nil {
				break
			}
		}
		if err == nil {
			return values, nil
		}
		if !errors.Is(err, confidential.ErrUnknownHandle) && !errors.Is(err, confidential.ErrAccessDenied) {
			return nil, err
		}
		if attempt < r.opts.Attempts && !sleepCtx(ctx, r.opts.Backoff) {
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func newRequestID() (uint64, error) {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("oracle: request id: %w", err)
		}
		id := binary.BigEndian.Uint64(b[:]) & MaxRequestID
		if id != 0 {
			return id, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Oracle = (*LocalRelayer)(nil)
