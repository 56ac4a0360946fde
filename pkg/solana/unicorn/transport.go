package unicorn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/soloking1412/Unicorn-Launchpad/internal/monitoring"
)

// Transport moves signed instructions to the network and raw account images
// back. Implementations classify their failures with this package's kinds.
type Transport interface {
	Submit(ctx context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error)
	Fetch(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// BalanceReader is implemented by transports that can read native balances.
type BalanceReader interface {
	Balance(ctx context.Context, address solana.PublicKey) (uint64, error)
}

type RPCConfig struct {
	Endpoint          string
	Commitment        rpc.CommitmentType
	RequestsPerSecond int
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	FetchMaxElapsed   time.Duration
	SkipPreflight     bool
}

func (c *RPCConfig) setDefaults() {
	if c.Commitment == "" {
		c.Commitment = rpc.CommitmentConfirmed
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.FetchMaxElapsed <= 0 {
		c.FetchMaxElapsed = 10 * time.Second
	}
}

// RPCTransport talks JSON-RPC to a Solana node. One limiter is shared by
// every call made through it.
type RPCTransport struct {
	client  *rpc.Client
	cfg     RPCConfig
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewRPCTransport(cfg RPCConfig, log *logrus.Entry) *RPCTransport {
	return NewRPCTransportWithClient(rpc.New(cfg.Endpoint), cfg, log)
}

func NewRPCTransportWithClient(client *rpc.Client, cfg RPCConfig, log *logrus.Entry) *RPCTransport {
	cfg.setDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RPCTransport{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		log:     log,
	}
}

// RPC exposes the underlying client for callers that need extra reads.
func (t *RPCTransport) RPC() *rpc.Client {
	return t.client
}

// Submit signs with signers (the first one pays), sends, and waits until the
// configured commitment is reached. On Timeout the returned signature is
// still valid and the outcome is unknown.
func (t *RPCTransport) Submit(ctx context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	const op = "submit"
	if len(signers) == 0 {
		return solana.Signature{}, invalidInput(op, "no signers")
	}
	payer := signers[0].PublicKey()

	if err := t.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, classify(op, err)
	}
	start := time.Now()
	bh, err := t.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	monitoring.ObserveRPC("getLatestBlockhash", start, err)
	if err != nil {
		return solana.Signature{}, classify(op, err)
	}

	tx, err := solana.NewTransaction(ixs, bh.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, newError(KindInvalidInput, op, "build transaction", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, newError(KindInvalidInput, op, "sign transaction", err)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, classify(op, err)
	}
	start = time.Now()
	sig, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       t.cfg.SkipPreflight,
		PreflightCommitment: t.cfg.Commitment,
	})
	monitoring.ObserveRPC("sendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, classify(op, err)
	}
	t.log.WithField("signature", sig).Debug("transaction sent")

	return sig, t.confirm(ctx, sig)
}

func (t *RPCTransport) confirm(ctx context.Context, sig solana.Signature) error {
	const op = "confirm"
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return t.confirmTimeout(sig, err)
		}
		start := time.Now()
		res, err := t.client.GetSignatureStatuses(ctx, false, sig)
		monitoring.ObserveRPC("getSignatureStatuses", start, err)
		if err != nil {
			if ctx.Err() != nil {
				return t.confirmTimeout(sig, err)
			}
			t.log.WithError(err).WithField("signature", sig).Warn("signature status poll failed")
		} else if len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return newError(KindRemoteRejected, op, describeTxError(status.Err), nil)
			}
			if reached(status.ConfirmationStatus, t.cfg.Commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return t.confirmTimeout(sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (t *RPCTransport) confirmTimeout(sig solana.Signature, err error) error {
	return newError(KindTimeout, "confirm", "signature "+sig.String()+" not confirmed; re-fetch before retrying", err)
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[string]int{
		string(rpc.ConfirmationStatusProcessed): 1,
		string(rpc.ConfirmationStatusConfirmed): 2,
		string(rpc.ConfirmationStatusFinalized): 3,
	}
	return rank[string(status)] > 0 && rank[string(status)] >= rank[string(want)]
}

// Fetch reads an account image. Transport failures are retried with
// exponential backoff; every other kind returns immediately.
func (t *RPCTransport) Fetch(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	const op = "fetch"
	var data []byte

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = t.cfg.FetchMaxElapsed

	err := backoff.RetryNotify(func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(classify(op, err))
		}
		start := time.Now()
		out, err := t.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: t.cfg.Commitment,
		})
		monitoring.ObserveRPC("getAccountInfo", start, err)
		if err != nil {
			cerr := classify(op, err)
			if cerr.Kind != KindTransport {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		if out == nil || out.Value == nil {
			return backoff.Permanent(newError(KindNotFound, op, address.String(), nil))
		}
		data = out.Value.Data.GetBinary()
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		monitoring.FetchRetryCount.Inc()
		t.log.WithError(err).WithFields(logrus.Fields{
			"address": address.String(),
			"wait":    wait,
		}).Warn("account fetch failed, retrying")
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, classify(op, err)
	}
	return data, nil
}

func (t *RPCTransport) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, classify("balance", err)
	}
	start := time.Now()
	out, err := t.client.GetBalance(ctx, address, t.cfg.Commitment)
	monitoring.ObserveRPC("getBalance", start, err)
	if err != nil {
		return 0, classify("balance", err)
	}
	return out.Value, nil
}

// classify maps a raw RPC error onto a Kind. Program rejections keep the
// node's message and simulation logs verbatim.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, op, "", err)
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return newError(KindNotFound, op, "", err)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if refused(rpcErr) {
			return newError(KindRemoteRejected, op, rejectionMessage(rpcErr), err)
		}
		// node side conditions (behind, overloaded, rate limited) clear on retry
		return newError(KindTransport, op, fmt.Sprintf("code %d: %s", rpcErr.Code, rpcErr.Message), err)
	}
	return newError(KindTransport, op, "", err)
}

// JSON-RPC codes that mean the request itself was refused.
const (
	codeInvalidRequest     = -32600
	codeMethodNotFound     = -32601
	codeInvalidParams      = -32602
	codePreflightFailure   = -32002
	codeSignatureVerifyErr = -32003
)

// refused reports whether the node refused the request or the program failed
// it in simulation, as opposed to a condition that retrying can clear.
func refused(e *jsonrpc.RPCError) bool {
	switch e.Code {
	case codePreflightFailure, codeSignatureVerifyErr,
		codeInvalidRequest, codeMethodNotFound, codeInvalidParams:
		return true
	}
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return false
	}
	if txErr, ok := data["err"]; ok && txErr != nil {
		return true
	}
	logs, ok := data["logs"].([]interface{})
	return ok && len(logs) > 0
}

func rejectionMessage(e *jsonrpc.RPCError) string {
	msg := fmt.Sprintf("code %d: %s", e.Code, e.Message)
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return msg
	}
	if txErr, ok := data["err"]; ok && txErr != nil {
		msg += " (" + describeTxError(txErr) + ")"
	}
	raw, ok := data["logs"].([]interface{})
	if !ok || len(raw) == 0 {
		return msg
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		logs = append(logs, fmt.Sprint(l))
	}
	return msg + "\n" + strings.Join(logs, "\n")
}

// describeTxError renders a transaction error as the node reported it,
// naming the program's custom error code when one is present.
func describeTxError(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(raw)
	if m := customCode.FindStringSubmatch(s); m != nil {
		code, err := strconv.ParseUint(m[1], 10, 32)
		if err == nil {
			if name := ProgramErrorName(uint32(code)); name != "" {
				s += " " + name
			}
		}
	}
	return s
}

var customCode = regexp.MustCompile(`"Custom":\s*(\d+)`)
