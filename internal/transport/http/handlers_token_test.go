package httptransport

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"custos/internal/merkle"
	"custos/internal/token"
	"custos/pkg/domain"
)

// initMint creates the mint through the admin API with the environment's
// issuer, freeze authority, and permanent delegate.
func (e *testEnv) initMint(t *testing.T) MintInfoResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/token/mint-info", map[string]any{
		"mint":               uuid.NewString(),
		"issuer":             e.issuer.String(),
		"freeze_authority":   e.freezer.String(),
		"permanent_delegate": e.delegate.String(),
		"whitepaper_uri":     "https://stablecoin.example/whitepaper.pdf",
	}, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("initialize mint: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[MintInfoResponse](t, rec)
}

// verifiedRecipient registers and verifies a user at the mint/redeem tier
// and returns the user with a fresh account ID for funds.
func (e *testEnv) verifiedRecipient(t *testing.T) (domain.UserID, domain.AccountID) {
	t.Helper()
	userID := domain.UserID(uuid.New())
	e.registerUser(t, userID)
	e.verifyUser(t, userID, 2)
	return userID, domain.AccountID(uuid.New())
}

// mintTo issues amount to the account through the API as the issuer.
func (e *testEnv) mintTo(t *testing.T, userID domain.UserID, account domain.AccountID, amount uint64) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/token/mint", map[string]any{
		"recipient_user":    userID.String(),
		"recipient_account": account.String(),
		"amount":            amount,
	}, e.asPrincipal(t, e.issuer))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mint: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) balance(t *testing.T, account domain.AccountID) uint64 {
	t.Helper()
	balance, err := e.ledger.Balance(account)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func TestInitializeMintEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// Nothing to fetch before initialization.
	rec := env.do(t, http.MethodGet, "/token/mint-info", nil, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before initialization, got %d", rec.Code)
	}

	info := env.initMint(t)
	if info.Issuer != env.issuer.String() || info.FreezeAuthority != env.freezer.String() {
		t.Fatalf("unexpected mint roles: %+v", info)
	}
	if !info.Active {
		t.Fatalf("expected new mint to be active")
	}
	if info.Decimals != token.EURDecimals {
		t.Fatalf("expected %d decimals, got %d", token.EURDecimals, info.Decimals)
	}
	if info.ReserveMerkleRoot != "" {
		t.Fatalf("expected no attestation before the first reserve update")
	}

	rec = env.do(t, http.MethodGet, "/token/mint-info", nil, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching mint info, got %d", rec.Code)
	}

	// The mint exists exactly once.
	rec = env.do(t, http.MethodPost, "/token/mint-info", map[string]any{
		"mint":               uuid.NewString(),
		"issuer":             env.issuer.String(),
		"freeze_authority":   env.freezer.String(),
		"permanent_delegate": env.delegate.String(),
		"whitepaper_uri":     "https://stablecoin.example/whitepaper.pdf",
	}, asAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 reinitializing the mint, got %d", rec.Code)
	}
}

func TestInitializeMintRejectsBadURI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/token/mint-info", map[string]any{
		"mint":               uuid.NewString(),
		"issuer":             env.issuer.String(),
		"freeze_authority":   env.freezer.String(),
		"permanent_delegate": env.delegate.String(),
		"whitepaper_uri":     "ftp://stablecoin.example/whitepaper.pdf",
	}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-https whitepaper uri, got %d", rec.Code)
	}
}

func TestMintEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)
	env.initMint(t)

	userID, account := env.verifiedRecipient(t)
	env.mintTo(t, userID, account, 50_000)

	if got := env.balance(t, account); got != 50_000 {
		t.Fatalf("expected balance 50000 after mint, got %d", got)
	}
	frozen, err := env.ledger.Frozen(account)
	if err != nil {
		t.Fatalf("read frozen state: %v", err)
	}
	if frozen {
		t.Fatalf("expected minted account to be thawed for use")
	}

	// Only the issuer mints.
	rec := env.do(t, http.MethodPost, "/token/mint", map[string]any{
		"recipient_user":    userID.String(),
		"recipient_account": account.String(),
		"amount":            1,
	}, env.asPrincipal(t, env.freezer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-issuer, got %d", rec.Code)
	}

	// Recipients below the mint/redeem tier are refused.
	pending := domain.UserID(uuid.New())
	env.registerUser(t, pending)
	rec = env.do(t, http.MethodPost, "/token/mint", map[string]any{
		"recipient_user":    pending.String(),
		"recipient_account": uuid.NewString(),
		"amount":            100,
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unverified recipient, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_eligible" {
		t.Fatalf("expected not_eligible, got %q", code)
	}

	rec = env.do(t, http.MethodPost, "/token/mint", map[string]any{
		"recipient_user":    userID.String(),
		"recipient_account": account.String(),
		"amount":            0,
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}
}

func TestBurnEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)
	env.initMint(t)

	userID, account := env.verifiedRecipient(t)
	env.mintTo(t, userID, account, 10_000)

	rec := env.do(t, http.MethodPost, "/token/burn", map[string]any{
		"account": account.String(),
		"amount":  4_000,
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 burning, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.balance(t, account); got != 6_000 {
		t.Fatalf("expected balance 6000 after burn, got %d", got)
	}

	rec = env.do(t, http.MethodPost, "/token/burn", map[string]any{
		"account": account.String(),
		"amount":  7_000,
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 burning beyond the balance, got %d", rec.Code)
	}
}

func TestFreezeThawEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)
	env.initMint(t)

	userID, account := env.verifiedRecipient(t)
	env.mintTo(t, userID, account, 1_000)

	rec := env.do(t, http.MethodPost, "/token/freeze", map[string]any{
		"account": account.String(),
	}, env.asPrincipal(t, env.freezer))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 freezing, got %d: %s", rec.Code, rec.Body.String())
	}

	// Frozen funds cannot be redeemed.
	rec = env.do(t, http.MethodPost, "/token/burn", map[string]any{
		"account": account.String(),
		"amount":  100,
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 burning from a frozen account, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/token/thaw", map[string]any{
		"account": account.String(),
	}, env.asPrincipal(t, env.freezer))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 thawing, got %d: %s", rec.Code, rec.Body.String())
	}

	// The issuer does not hold the freeze power.
	rec = env.do(t, http.MethodPost, "/token/freeze", map[string]any{
		"account": account.String(),
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-freeze-authority, got %d", rec.Code)
	}
}

func TestSeizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)
	env.initMint(t)

	userID, target := env.verifiedRecipient(t)
	env.mintTo(t, userID, target, 9_000)

	// The recovery account exists and can receive.
	recovery := domain.AccountID(uuid.New())
	if err := env.ledger.CreateAccount(recovery, env.delegate); err != nil {
		t.Fatalf("create recovery account: %v", err)
	}
	if err := env.ledger.Thaw(t.Context(), recovery); err != nil {
		t.Fatalf("thaw recovery account: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/token/seize", map[string]any{
		"target_account":   target.String(),
		"recovery_account": recovery.String(),
		"amount":           9_000,
	}, env.asPrincipal(t, env.delegate))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 seizing, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.balance(t, recovery); got != 9_000 {
		t.Fatalf("expected recovery balance 9000, got %d", got)
	}
	if got := env.balance(t, target); got != 0 {
		t.Fatalf("expected target emptied, got %d", got)
	}

	// Only the permanent delegate seizes.
	rec = env.do(t, http.MethodPost, "/token/seize", map[string]any{
		"target_account":   recovery.String(),
		"recovery_account": target.String(),
		"amount":           1,
	}, env.asPrincipal(t, env.freezer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-delegate, got %d", rec.Code)
	}

	// Target and recovery must differ.
	rec = env.do(t, http.MethodPost, "/token/seize", map[string]any{
		"target_account":   recovery.String(),
		"recovery_account": recovery.String(),
		"amount":           1,
	}, env.asPrincipal(t, env.delegate))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for identical accounts, got %d", rec.Code)
	}
}

func TestReserveAttestationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.initMint(t)

	// Publish an attestation over four deposits.
	leaves := make([][32]byte, 4)
	for i := range leaves {
		leaves[i] = merkle.Leaf(fmt.Sprintf("deposit-%d", i), uint64(1_000*(i+1)), 1_700_000_000+int64(i))
	}
	root := merkle.Root(leaves)

	rec := env.do(t, http.MethodPut, "/token/reserve", map[string]any{
		"merkle_root": hex.EncodeToString(root[:]),
		"ipfs_cid":    "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating reserve, got %d: %s", rec.Code, rec.Body.String())
	}
	info := decodeBody[MintInfoResponse](t, rec)
	if info.ReserveMerkleRoot != hex.EncodeToString(root[:]) {
		t.Fatalf("expected stored root %x, got %s", root, info.ReserveMerkleRoot)
	}
	if info.LastReserveUpdate.IsZero() {
		t.Fatalf("expected attestation timestamp to be set")
	}

	// A holder verifies the third deposit without credentials.
	proof, sides, err := merkle.Proof(leaves, 2)
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	steps := make([]map[string]string, len(proof))
	for i := range proof {
		side := "right"
		if sides[i] == merkle.SideLeft {
			side = "left"
		}
		steps[i] = map[string]string{
			"hash": hex.EncodeToString(proof[i][:]),
			"side": side,
		}
	}

	rec = env.do(t, http.MethodPost, "/token/reserve/verify", map[string]any{
		"deposit_id": "deposit-2",
		"amount":     3_000,
		"timestamp":  1_700_000_002,
		"proof":      steps,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[VerifyReserveLeafResponse](t, rec); !resp.Valid {
		t.Fatalf("expected a valid inclusion proof")
	}

	// A tampered amount fails the proof but not the request.
	rec = env.do(t, http.MethodPost, "/token/reserve/verify", map[string]any{
		"deposit_id": "deposit-2",
		"amount":     3_001,
		"timestamp":  1_700_000_002,
		"proof":      steps,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for failed proof, got %d", rec.Code)
	}
	if resp := decodeBody[VerifyReserveLeafResponse](t, rec); resp.Valid {
		t.Fatalf("expected a tampered leaf to fail verification")
	}

	// Only the issuer attests.
	rec = env.do(t, http.MethodPut, "/token/reserve", map[string]any{
		"merkle_root": hex.EncodeToString(root[:]),
		"ipfs_cid":    "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
	}, env.asPrincipal(t, env.delegate))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-issuer attestation, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/token/reserve", map[string]any{
		"merkle_root": "zz",
		"ipfs_cid":    "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
	}, env.asPrincipal(t, env.issuer))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed root, got %d", rec.Code)
	}
}

func TestCheckTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)
	env.initMint(t)

	sender, _ := env.verifiedRecipient(t)
	recipient, _ := env.verifiedRecipient(t)

	fiu := domain.AuthorityKey(uuid.New())
	env.registerAuthority(t, fiu, "FIU-DE", []string{"view", "modify_blacklist"})

	auth := env.asPrincipal(t, fiu)

	rec := env.do(t, http.MethodPost, "/token/transfer-check", map[string]any{
		"from_user": sender.String(),
		"to_user":   recipient.String(),
		"amount":    25_000,
	}, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decision := decodeBody[token.TransferDecision](t, rec)
	if !decision.Allowed || len(decision.Reasons) != 0 {
		t.Fatalf("expected clean transfer to be allowed, got %+v", decision)
	}

	// Blacklist the recipient and screen again.
	blk := env.do(t, http.MethodPost, "/aml/blacklist", map[string]any{
		"user_id": recipient.String(),
		"reason":  "sanctions match",
	}, auth)
	if blk.Code != http.StatusCreated {
		t.Fatalf("blacklist recipient: expected 201, got %d", blk.Code)
	}

	rec = env.do(t, http.MethodPost, "/token/transfer-check", map[string]any{
		"from_user": sender.String(),
		"to_user":   recipient.String(),
		"amount":    25_000,
	}, auth)
	decision = decodeBody[token.TransferDecision](t, rec)
	if decision.Allowed {
		t.Fatalf("expected blacklisted recipient to deny the transfer")
	}
	found := false
	for _, reason := range decision.Reasons {
		if reason == token.ReasonRecipientBlacklisted {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in reasons, got %v", token.ReasonRecipientBlacklisted, decision.Reasons)
	}

	rec = env.do(t, http.MethodPost, "/token/transfer-check", map[string]any{
		"from_user": sender.String(),
		"to_user":   recipient.String(),
		"amount":    0,
	}, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/token/transfer-check", map[string]any{
		"from_user": "nope",
		"to_user":   recipient.String(),
		"amount":    10,
	}, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed sender id, got %d", rec.Code)
	}
}
