// Package orchestrator sequences user write operations against the protocol
// contracts: allowance checks with an over-approval tolerance, submission,
// confirmation, notification and a background refresh of dependent views.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"backchain/chain"
	"backchain/chain/resilient"
	"backchain/format"
	"backchain/observability"
	bkcotel "backchain/observability/otel"
	"backchain/wallet"
)

const (
	// DefaultToleranceBips is the over-approval buffer applied to allowances.
	DefaultToleranceBips uint64 = 100
	bipsDenominator      uint64 = 10000

	defaultRejection = "Transaction rejected."
)

var (
	ErrNotConnected  = errors.New("orchestrator: wallet not connected")
	ErrControlBusy   = errors.New("orchestrator: control already has an operation in flight")
	ErrDeclined      = errors.New("orchestrator: operation declined by user")
	ErrInvalidAmount = errors.New("orchestrator: amount must be greater than zero")
)

// SessionSource yields the active wallet session, or nil when disconnected.
// *wallet.Connector satisfies it.
type SessionSource interface {
	Session() *wallet.Session
}

// Waiter blocks until a submitted transaction is mined.
type Waiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Refresher reloads user-dependent view state after a successful write.
type Refresher interface {
	Refresh(ctx context.Context, user common.Address) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, user common.Address) error

func (f RefresherFunc) Refresh(ctx context.Context, user common.Address) error { return f(ctx, user) }

// Confirmer asks the user to accept a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// AssetRegistrar offers a freshly acquired token to the wallet's asset list.
type AssetRegistrar interface {
	WatchAsset(ctx context.Context, asset wallet.Asset) (bool, error)
}

// Resetter is a cache cleared after writes that invalidate it.
type Resetter interface {
	Reset()
}

// SubmitFunc sends one transaction using the session's handles.
type SubmitFunc func(ctx context.Context, handles *chain.HandleSet) (*types.Transaction, error)

// PendingApproval is the allowance a write needs before it can spend tokens.
type PendingApproval struct {
	Spender   common.Address
	Required  *big.Int
	Tolerated *big.Int
}

// Outcome is the structured result of a successful write.
type Outcome struct {
	Operation string
	// TxHashes lists confirmed transactions in submission order, approvals
	// included.
	TxHashes []common.Hash
	// Approved is true when an approval transaction was submitted.
	Approved bool
	// TokenID is set by operations that acquire or target an NFT.
	TokenID *big.Int
}

// Last returns the hash of the final transaction.
func (o Outcome) Last() common.Hash {
	if len(o.TxHashes) == 0 {
		return common.Hash{}
	}
	return o.TxHashes[len(o.TxHashes)-1]
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier routes notifications to n.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithRefresher installs the post-write refresh hook.
func WithRefresher(r Refresher) Option {
	return func(o *Orchestrator) { o.refresher = r }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observability.OrchestratorMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithToleranceBips overrides the approval buffer.
func WithToleranceBips(bips uint64) Option {
	return func(o *Orchestrator) { o.toleranceBips = bips }
}

// WithWaiter supplies the receipt waiter.
func WithWaiter(w Waiter) Option {
	return func(o *Orchestrator) { o.waiter = w }
}

// WithConfirmer supplies the confirmation prompt for destructive writes.
func WithConfirmer(c Confirmer) Option {
	return func(o *Orchestrator) { o.confirmer = c }
}

// WithAssetRegistrar supplies the asset registration hook used after a
// booster purchase.
func WithAssetRegistrar(r AssetRegistrar) Option {
	return func(o *Orchestrator) { o.registrar = r }
}

// WithClock sets the function used to timestamp notifications.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.now = clock }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithReader supplies the resilient reader used for lookups inside writes.
func WithReader(r *resilient.Reader) Option {
	return func(o *Orchestrator) { o.reader = r }
}

// WithBoosterCache registers the booster holdings cache.
func WithBoosterCache(c Resetter) Option {
	return func(o *Orchestrator) { o.boosters = c }
}

// WithCertificateCache registers the vesting certificate cache.
func WithCertificateCache(c Resetter) Option {
	return func(o *Orchestrator) { o.certificates = c }
}

// WithExplorer sets the block explorer base URL used for transaction links.
func WithExplorer(url string) Option {
	return func(o *Orchestrator) { o.explorer = url }
}

// Orchestrator runs write operations for the active session.
type Orchestrator struct {
	source        SessionSource
	notifier      Notifier
	refresher     Refresher
	metrics       *observability.OrchestratorMetrics
	toleranceBips uint64
	waiter        Waiter
	confirmer     Confirmer
	registrar     AssetRegistrar
	reader        *resilient.Reader
	boosters      Resetter
	certificates  Resetter
	explorer      string
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time

	refreshes sync.WaitGroup
}

// New constructs an orchestrator over source.
func New(source SessionSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:        source,
		toleranceBips: DefaultToleranceBips,
		metrics:       observability.Orchestrator(),
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.notifier == nil {
		o.notifier = LogNotifier{Logger: o.logger}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.reader == nil {
		o.reader = resilient.NewReader(resilient.WithLogger(o.logger))
	}
	o.tracer = bkcotel.Tracer("orchestrator")
	return o
}

// Wait blocks until every background refresh has finished.
func (o *Orchestrator) Wait() {
	o.refreshes.Wait()
}

// ToleratedAmount applies bips of headroom to required using integer math:
// required * (10000 + bips) / 10000, rounded down.
func ToleratedAmount(required *big.Int, bips uint64) *big.Int {
	if required == nil || required.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(required, new(big.Int).SetUint64(bipsDenominator+bips))
	return out.Quo(out, new(big.Int).SetUint64(bipsDenominator))
}

// NewPendingApproval computes the allowance a spend of required needs.
func NewPendingApproval(spender common.Address, required *big.Int, bips uint64) PendingApproval {
	req := new(big.Int)
	if required != nil {
		req.Set(required)
	}
	return PendingApproval{Spender: spender, Required: req, Tolerated: ToleratedAmount(req, bips)}
}

// notified marks an error the user has already been told about.
type notified struct{ err error }

func (n *notified) Error() string { return n.err.Error() }
func (n *notified) Unwrap() error { return n.err }

func alreadyNotified(err error) bool {
	var n *notified
	return errors.As(err, &n)
}

func unwrapNotified(err error) error {
	var n *notified
	if errors.As(err, &n) {
		return n.err
	}
	return err
}

// reasonOf picks the most readable explanation for err.
func reasonOf(err error) string {
	if err == nil {
		return defaultRejection
	}
	if reason := chain.Reason(unwrapNotified(err)); reason != "" {
		return reason
	}
	return defaultRejection
}

func (o *Orchestrator) notify(ctx context.Context, level Level, message string, hash common.Hash) {
	n := newNotification(level, message, o.now())
	if hash != (common.Hash{}) {
		n.TxHash = hash
		n.Link = format.TxURL(o.explorer, hash)
	}
	o.notifier.Notify(ctx, n)
}

// fail emits the terminal error notification unless one was already sent,
// and returns err marked as notified.
func (o *Orchestrator) fail(ctx context.Context, prefix string, err error) error {
	if alreadyNotified(err) {
		return err
	}
	o.notify(ctx, LevelError, prefix+": "+reasonOf(err), common.Hash{})
	return &notified{err: err}
}

// reject emits a validation failure that happens before any transaction.
func (o *Orchestrator) reject(ctx context.Context, message string, err error) error {
	o.notify(ctx, LevelError, message, common.Hash{})
	return &notified{err: err}
}

type opFunc func(ctx context.Context, sess *wallet.Session, out *Outcome) error

// run brackets one write operation: busy check, control disable/enable,
// tracing, metrics, one terminal error notification, and a background
// refresh after success.
func (o *Orchestrator) run(ctx context.Context, operation string, ctrl Control, fn opFunc) (Outcome, error) {
	if ctrl == nil {
		ctrl = held{}
	}
	if !acquire(ctrl) {
		return Outcome{}, ErrControlBusy
	}
	defer ctrl.Enable()
	defer labelControl(ctrl, "Processing...")()

	ctx, span := o.tracer.Start(ctx, "orchestrator."+operation)
	defer span.End()

	start := o.now()
	out := Outcome{Operation: operation}
	var sess *wallet.Session
	if o.source != nil {
		sess = o.source.Session()
	}
	var err error
	if !sess.Connected() {
		err = o.reject(ctx, "Wallet not connected.", ErrNotConnected)
	} else {
		span.SetAttributes(attribute.String("user", sess.User.Hex()))
		err = fn(ctx, sess, &out)
	}

	kind := ""
	if err != nil {
		err = o.fail(ctx, "Error", err)
		err = unwrapNotified(err)
		kind = chain.Classify(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, reasonOf(err))
		o.logger.Warn("write operation failed",
			slog.String("operation", operation),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	} else {
		span.SetAttributes(attribute.Int("transactions", len(out.TxHashes)))
		o.logger.Info("write operation completed",
			slog.String("operation", operation),
			slog.Int("transactions", len(out.TxHashes)))
	}
	o.metrics.Observe(operation, o.now().Sub(start), kind, err)
	if err != nil {
		return Outcome{}, err
	}
	if sess != nil {
		o.scheduleRefresh(ctx, sess.User)
	}
	return out, nil
}

func (o *Orchestrator) scheduleRefresh(ctx context.Context, user common.Address) {
	if o.refresher == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	o.refreshes.Add(1)
	go func() {
		defer o.refreshes.Done()
		if err := o.refresher.Refresh(bg, user); err != nil {
			o.logger.Warn("post-transaction refresh failed",
				slog.String("user", user.Hex()),
				slog.String("error", err.Error()))
		}
	}()
}

// confirm submits via submit, waits for the receipt and checks its status.
// It emits no notifications.
func (o *Orchestrator) confirm(ctx context.Context, sess *wallet.Session, submit SubmitFunc) (common.Hash, error) {
	if o.waiter == nil {
		return common.Hash{}, fmt.Errorf("orchestrator: receipt waiter not configured")
	}
	tx, err := submit(ctx, sess.Handles)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := o.waiter.WaitMined(ctx, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if err := chain.CheckReceipt(receipt); err != nil {
		return tx.Hash(), err
	}
	return tx.Hash(), nil
}

// transact is the inner body of ExecuteTransaction.
func (o *Orchestrator) transact(ctx context.Context, sess *wallet.Session, out *Outcome, submit SubmitFunc, success, failure string) error {
	hash, err := o.confirm(ctx, sess, func(ctx context.Context, h *chain.HandleSet) (*types.Transaction, error) {
		tx, err := submit(ctx, h)
		if err == nil {
			o.notify(ctx, LevelInfo, "Submitting transaction...", common.Hash{})
		}
		return tx, err
	})
	if err != nil {
		return o.fail(ctx, failure, err)
	}
	out.TxHashes = append(out.TxHashes, hash)
	o.notify(ctx, LevelSuccess, success, hash)
	return nil
}

// ExecuteTransaction disables ctrl, submits, waits for confirmation and
// reports the outcome with exactly one terminal notification. A background
// refresh follows success. ctrl may be nil.
func (o *Orchestrator) ExecuteTransaction(ctx context.Context, submit SubmitFunc, success, failure string, ctrl Control) (Outcome, error) {
	return o.run(ctx, "transaction", ctrl, func(ctx context.Context, sess *wallet.Session, out *Outcome) error {
		return o.transact(ctx, sess, out, submit, success, failure)
	})
}

// EnsureApproval makes sure spender may move at least the tolerated amount
// of required tokens for the user, submitting one approval if not. It
// reports whether the spender is authorised. Failures are notified once as
// "Approval Error" and never retried.
func (o *Orchestrator) EnsureApproval(ctx context.Context, spender common.Address, required *big.Int, ctrl Control, purpose string) (bool, error) {
	if ctrl == nil {
		ctrl = held{}
	}
	if !acquire(ctrl) {
		return false, ErrControlBusy
	}
	defer ctrl.Enable()
	defer labelControl(ctrl, "Approving...")()
	var sess *wallet.Session
	if o.source != nil {
		sess = o.source.Session()
	}
	if !sess.Connected() {
		return false, unwrapNotified(o.reject(ctx, "Wallet not connected.", ErrNotConnected))
	}
	var out Outcome
	if err := o.ensureApproval(ctx, sess, &out, spender, required, purpose); err != nil {
		return false, unwrapNotified(err)
	}
	return true, nil
}

func (o *Orchestrator) ensureApproval(ctx context.Context, sess *wallet.Session, out *Outcome, spender common.Address, required *big.Int, purpose string) error {
	pending := NewPendingApproval(spender, required, o.toleranceBips)
	token, err := sess.Handles.Must(chain.RoleToken)
	if err != nil {
		o.metrics.RecordApproval(purpose, "failed")
		return o.fail(ctx, "Approval Error", err)
	}
	allowance := new(big.Int)
	if err := token.Call(ctx, &allowance, "allowance", sess.User, pending.Spender); err != nil {
		o.metrics.RecordApproval(purpose, "failed")
		return o.fail(ctx, "Approval Error", err)
	}
	if allowance.Cmp(pending.Tolerated) >= 0 {
		o.metrics.RecordApproval(purpose, "skipped")
		return nil
	}
	o.logger.Info("submitting approval",
		slog.String("purpose", purpose),
		slog.String("spender", pending.Spender.Hex()),
		slog.String("required", pending.Required.String()),
		slog.String("tolerated", pending.Tolerated.String()))
	o.notify(ctx, LevelInfo, fmt.Sprintf("Approving %s $BKC (with %s tolerance) for %s...",
		format.Units(pending.Tolerated, format.TokenDecimals, 2), format.Bips(o.toleranceBips), purpose), common.Hash{})
	hash, err := o.confirm(ctx, sess, func(ctx context.Context, h *chain.HandleSet) (*types.Transaction, error) {
		return token.Transact(ctx, "approve", pending.Spender, pending.Tolerated)
	})
	if err != nil {
		o.metrics.RecordApproval(purpose, "failed")
		return o.fail(ctx, "Approval Error", err)
	}
	o.metrics.RecordApproval(purpose, "submitted")
	out.Approved = true
	out.TxHashes = append(out.TxHashes, hash)
	o.notify(ctx, LevelSuccess, "Approval successful!", hash)
	return nil
}

// approveAndTransact is the common approval-then-write sequence.
func (o *Orchestrator) approveAndTransact(ctx context.Context, sess *wallet.Session, out *Outcome, spender common.Address, amount *big.Int, purpose string, submit SubmitFunc, success, failure string) error {
	if err := o.ensureApproval(ctx, sess, out, spender, amount, purpose); err != nil {
		return err
	}
	return o.transact(ctx, sess, out, submit, success, failure)
}

func call(role chain.Role, method string, args ...any) SubmitFunc {
	return func(ctx context.Context, h *chain.HandleSet) (*types.Transaction, error) {
		c, err := h.Must(role)
		if err != nil {
			return nil, err
		}
		return c.Transact(ctx, method, args...)
	}
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func resetCache(c Resetter) {
	if c != nil {
		c.Reset()
	}
}
