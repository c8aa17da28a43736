package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"backchain/chain"
	"backchain/chain/chaintest"
	"backchain/config"
	"backchain/orchestrator"
	"backchain/views"
	"backchain/wallet"
)

var testUser = common.HexToAddress("0x00000000000000000000000000000000000000c1")

type handleSource struct{ set *chain.HandleSet }

func (s handleSource) Handles() *chain.HandleSet { return s.set }

type staticSource struct{ session *wallet.Session }

func (s staticSource) Session() *wallet.Session { return s.session }

// fixture opens envs over an in-memory deployment.
type fixture struct {
	d      *chaintest.Deployment
	opened int
}

func newFixture() *fixture {
	return &fixture{d: chaintest.NewDeployment(testUser)}
}

func (f *fixture) open(_ context.Context, g *globalFlags, signing bool, stdout io.Writer, stdin io.Reader) (*env, error) {
	f.opened++
	cfg := config.Default()
	notes := newPrintNotifier(stdout)
	agg := views.New(handleSource{f.d.ReadOnlyHandles()})
	session := &wallet.Session{
		User:    testUser,
		ChainID: big.NewInt(int64(cfg.Network.ChainID)),
		Signer:  &bind.TransactOpts{From: testUser},
		Handles: f.d.Handles(),
	}
	orch := orchestrator.New(staticSource{session: session},
		orchestrator.WithNotifier(notes),
		orchestrator.WithWaiter(f.d.Ledger),
		orchestrator.WithConfirmer(promptConfirmer{in: bufio.NewReader(stdin), out: stdout, assumeYes: g.assumeYes}),
		orchestrator.WithRefresher(agg),
		orchestrator.WithBoosterCache(agg.BoosterCache()),
		orchestrator.WithCertificateCache(agg.CertificateCache()),
		orchestrator.WithExplorer(cfg.Network.ExplorerURL),
	)
	e := &env{cfg: cfg, logger: slog.Default(), views: agg, orch: orch, out: stdout, notes: notes}
	if signing {
		e.account = testUser
	}
	e.closers = append(e.closers, orch.Wait)
	return e, nil
}

func runCLI(t *testing.T, f *fixture, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand(f.open, &out, &errOut, strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestDashboardCommand(t *testing.T) {
	f := newFixture()
	f.d.Token.SetSupply(tokens(2_000_000))
	f.d.Token.SetBalance(chaintest.DelegationAddress, tokens(500_000))

	out, err := runCLI(t, f, "", "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !strings.Contains(out, "2,000,000.00 BKC") {
		t.Fatalf("supply missing from output:\n%s", out)
	}
	if !strings.Contains(out, "(25.00%)") {
		t.Fatalf("locked share missing from output:\n%s", out)
	}
}

func TestInvalidAddressDoesNotDial(t *testing.T) {
	f := newFixture()
	if _, err := runCLI(t, f, "", "account", "not-an-address"); err == nil {
		t.Fatalf("expected an invalid address error")
	}
	if f.opened != 0 {
		t.Fatalf("environment opened %d times for a bad argument", f.opened)
	}
}

func TestDelegateCommandPrintsExplorerLinks(t *testing.T) {
	f := newFixture()
	out, err := runCLI(t, f, "", "delegate", chaintest.DelegationAddress.Hex(), "10", "30")
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	methods := f.d.Methods()
	if len(methods) != 2 || methods[0] != "approve" || methods[1] != "delegate" {
		t.Fatalf("unexpected transactions %v", methods)
	}
	if strings.Count(out, "/tx/0x") != 2 {
		t.Fatalf("expected two explorer links:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, "/tx/0x") && !strings.HasPrefix(line, "[success] ") {
			t.Fatalf("explorer link printed outside a notification: %q", line)
		}
	}
	if !strings.Contains(out, "[success] Delegation successful!") {
		t.Fatalf("missing success notification:\n%s", out)
	}
	lock := f.d.Sent()[1].Args[2].(*big.Int)
	if lock.Int64() != int64(30*day/time.Second) {
		t.Fatalf("lock seconds = %s", lock)
	}
}

func TestClaimBothPrintsEveryTransactionOnce(t *testing.T) {
	f := newFixture()
	f.d.Delegation.Returns("pendingDelegatorRewards", big.NewInt(100))
	f.d.Reward.Returns("minerRewardsOwed", big.NewInt(40))

	out, err := runCLI(t, f, "", "claim")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if methods := f.d.Methods(); len(methods) != 2 {
		t.Fatalf("unexpected transactions %v", methods)
	}
	if strings.Count(out, "/tx/0x") != 2 {
		t.Fatalf("expected one link per claim:\n%s", out)
	}
}

func TestForceUnstakeDeclined(t *testing.T) {
	f := newFixture()
	out, err := runCLI(t, f, "n\n", "force-unstake", "2")
	if err != nil {
		t.Fatalf("declining is not an error: %v", err)
	}
	if !strings.Contains(out, orchestrator.ForceUnstakePrompt+" [y/N]") {
		t.Fatalf("prompt not shown:\n%s", out)
	}
	if len(f.d.Methods()) != 0 {
		t.Fatalf("declined force unstake sent %v", f.d.Methods())
	}
}

func TestForceUnstakeAssumeYes(t *testing.T) {
	f := newFixture()
	if _, err := runCLI(t, f, "", "--yes", "force-unstake", "2"); err != nil {
		t.Fatalf("force-unstake: %v", err)
	}
	methods := f.d.Methods()
	if len(methods) != 1 || methods[0] != "forceUnstake" {
		t.Fatalf("unexpected transactions %v", methods)
	}
}

func TestClaimWithNothingPending(t *testing.T) {
	f := newFixture()
	out, err := runCLI(t, f, "", "claim")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !strings.Contains(out, "No rewards to claim.") {
		t.Fatalf("expected nothing-to-claim notice:\n%s", out)
	}
	if len(f.d.Methods()) != 0 {
		t.Fatalf("claim sent %v", f.d.Methods())
	}
}

func TestBuyUnknownTier(t *testing.T) {
	f := newFixture()
	_, err := runCLI(t, f, "", "buy", "Mythic")
	if err == nil || !strings.Contains(err.Error(), "unknown booster tier") {
		t.Fatalf("expected unknown tier error, got %v", err)
	}
}

func TestFinalizeChecksEndTime(t *testing.T) {
	f := newFixture()
	end := time.Now().Add(time.Hour)
	f.d.Actions.OnCall("actions", func(args ...any) (any, error) {
		rec := chain.EmptyAction()
		rec.ID = new(big.Int).Set(args[0].(*big.Int))
		rec.EndTime = big.NewInt(end.Unix())
		return rec, nil
	})

	_, err := runCLI(t, f, "", "action", "finalize", "3")
	if err == nil || !strings.Contains(err.Error(), "action 3 is open") {
		t.Fatalf("expected open action to be refused, got %v", err)
	}

	end = time.Now().Add(-time.Hour)
	if _, err := runCLI(t, f, "", "action", "finalize", "3"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	methods := f.d.Methods()
	if len(methods) != 1 || methods[0] != "finalizeAction" {
		t.Fatalf("unexpected transactions %v", methods)
	}
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "bkc.toml")
	if _, err := runCLI(t, f, "", "init-config", path); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if _, err := runCLI(t, f, "", "init-config", path); err == nil {
		t.Fatalf("expected existing file to be refused")
	}
	if _, err := runCLI(t, f, "", "init-config", "--force", path); err != nil {
		t.Fatalf("forced init-config: %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * day,
		"36h": 36 * time.Hour,
		"90m": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		if err != nil || got != want {
			t.Fatalf("parseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "0d", "-1h", "soon"} {
		if _, err := parseDuration(bad); err == nil {
			t.Fatalf("parseDuration(%q) should fail", bad)
		}
	}
}

func TestFindTier(t *testing.T) {
	tiers := []views.StoreTier{
		{BoosterTier: config.BoosterTier{Name: "Gold", BoostBips: 3000}},
		{BoosterTier: config.BoosterTier{Name: "Silver", BoostBips: 2000}},
	}
	if tier, err := findTier(tiers, "gold"); err != nil || tier.BoostBips != 3000 {
		t.Fatalf("lookup by name: %v %v", tier, err)
	}
	if tier, err := findTier(tiers, "2000"); err != nil || tier.Name != "Silver" {
		t.Fatalf("lookup by bips: %v %v", tier, err)
	}
}
