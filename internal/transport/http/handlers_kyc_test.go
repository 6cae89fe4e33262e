package httptransport

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"custos/pkg/domain"
)

// initOracle creates the verification registry through the admin API.
func (e *testEnv) initOracle(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/kyc/oracle",
		map[string]string{"authority_key": e.oracleAuthority.String()}, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("initialize oracle: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

// registerUser registers a pending record for userID under the oracle
// authority, resident in Germany.
func (e *testEnv) registerUser(t *testing.T, userID domain.UserID) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/kyc/users", map[string]any{
		"user_id":       userID.String(),
		"authority_key": e.oracleAuthority.String(),
		"country":       "DE",
		"blz":           "10070024",
		"provider":      "bank-ident",
	}, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

// verifyUser promotes userID to verified at the given level with a one
// year expiry.
func (e *testEnv) verifyUser(t *testing.T, userID domain.UserID, level uint8) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/kyc/users/"+userID.String()+"/status", map[string]any{
		"authority_key": e.oracleAuthority.String(),
		"status":        "verified",
		"level":         level,
		"expiry_days":   365,
	}, asAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify user: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInitializeOracleEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/kyc/oracle",
		map[string]string{"authority_key": env.oracleAuthority.String()}, asAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeBody[OracleStateResponse](t, rec)
	if state.AuthorityKey != env.oracleAuthority.String() {
		t.Fatalf("expected oracle authority %s, got %s", env.oracleAuthority, state.AuthorityKey)
	}
	if state.UserCount != 0 || state.VerifiedUserCount != 0 {
		t.Fatalf("expected empty counters, got %d/%d", state.UserCount, state.VerifiedUserCount)
	}

	// The oracle is a singleton.
	rec = env.do(t, http.MethodPost, "/kyc/oracle",
		map[string]string{"authority_key": env.oracleAuthority.String()}, asAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second initialization, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/kyc/oracle",
		map[string]string{"authority_key": "not-a-uuid"}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed key, got %d", rec.Code)
	}
}

func TestRegisterAndFetchUser(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)

	userID := domain.UserID(uuid.New())
	env.registerUser(t, userID)

	rec := env.do(t, http.MethodGet, "/kyc/users/"+userID.String(), nil,
		env.asPrincipal(t, env.oracleAuthority))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching user, got %d: %s", rec.Code, rec.Body.String())
	}
	user := decodeBody[UserResponse](t, rec)
	if user.ID != userID.String() {
		t.Fatalf("expected user id %s, got %s", userID, user.ID)
	}
	if user.Status != "pending" {
		t.Fatalf("expected pending status after registration, got %q", user.Status)
	}
	if user.Country != "DE" || user.BLZ != "10070024" || user.Provider != "bank-ident" {
		t.Fatalf("unexpected registration details: %+v", user)
	}
	if user.RegisteredBy != env.oracleAuthority.String() {
		t.Fatalf("expected registering authority %s, got %s", env.oracleAuthority, user.RegisteredBy)
	}

	// Registration counter moved.
	rec = env.do(t, http.MethodGet, "/kyc/oracle", nil, asAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching oracle, got %d", rec.Code)
	}
	if state := decodeBody[OracleStateResponse](t, rec); state.UserCount != 1 {
		t.Fatalf("expected user count 1, got %d", state.UserCount)
	}

	rec = env.do(t, http.MethodGet, "/kyc/users/"+uuid.NewString(), nil,
		env.asPrincipal(t, env.oracleAuthority))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/kyc/users/not-a-uuid", nil,
		env.asPrincipal(t, env.oracleAuthority))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed user id, got %d", rec.Code)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)

	userID := domain.UserID(uuid.New())
	env.registerUser(t, userID)

	// Duplicate registration conflicts.
	rec := env.do(t, http.MethodPost, "/kyc/users", map[string]any{
		"user_id":       userID.String(),
		"authority_key": env.oracleAuthority.String(),
		"country":       "DE",
	}, asAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate registration, got %d", rec.Code)
	}

	// Unsupported jurisdiction.
	rec = env.do(t, http.MethodPost, "/kyc/users", map[string]any{
		"user_id":       uuid.NewString(),
		"authority_key": env.oracleAuthority.String(),
		"country":       "US",
	}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported country, got %d", rec.Code)
	}

	// IBAN hash must be a full SHA-256 hex digest when present.
	rec = env.do(t, http.MethodPost, "/kyc/users", map[string]any{
		"user_id":       uuid.NewString(),
		"authority_key": env.oracleAuthority.String(),
		"country":       "DE",
		"iban_hash":     "abcd",
	}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short iban hash, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", code)
	}
}

func TestUpdateUserStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)

	userID := domain.UserID(uuid.New())
	env.registerUser(t, userID)

	rec := env.do(t, http.MethodPost, "/kyc/users/"+userID.String()+"/status", map[string]any{
		"authority_key": env.oracleAuthority.String(),
		"status":        "verified",
		"level":         2,
		"expiry_days":   30,
	}, asAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	user := decodeBody[UserResponse](t, rec)
	if user.Status != "verified" || user.VerificationLevel != 2 {
		t.Fatalf("expected verified level 2, got %s level %d", user.Status, user.VerificationLevel)
	}
	if user.ExpiryTime.IsZero() || !user.ExpiryTime.After(user.VerificationTime) {
		t.Fatalf("expected expiry after verification time, got %v / %v", user.ExpiryTime, user.VerificationTime)
	}

	// Verified population counter follows.
	rec = env.do(t, http.MethodGet, "/kyc/oracle", nil, asAdmin)
	if state := decodeBody[OracleStateResponse](t, rec); state.VerifiedUserCount != 1 {
		t.Fatalf("expected verified count 1, got %d", state.VerifiedUserCount)
	}

	// Only the registering authority may decide.
	rec = env.do(t, http.MethodPost, "/kyc/users/"+userID.String()+"/status", map[string]any{
		"authority_key": uuid.NewString(),
		"status":        "suspended",
	}, asAdmin)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign authority, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/kyc/users/"+userID.String()+"/status", map[string]any{
		"authority_key": env.oracleAuthority.String(),
		"status":        "approved-ish",
	}, asAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.initOracle(t)

	userID := domain.UserID(uuid.New())
	env.registerUser(t, userID)
	env.verifyUser(t, userID, 2)

	auth := env.asPrincipal(t, env.oracleAuthority)
	base := "/kyc/users/" + userID.String() + "/eligibility"

	checks := []struct {
		query    string
		eligible bool
	}{
		{"", true},
		{"?level=2", true},
		{"?level=3", false},
		{"?level=2&countries=DE,FR", true},
		{"?level=2&countries=FR", false},
	}
	for _, tc := range checks {
		rec := env.do(t, http.MethodGet, base+tc.query, nil, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("query %q: expected 200, got %d: %s", tc.query, rec.Code, rec.Body.String())
		}
		resp := decodeBody[EligibilityResponse](t, rec)
		if resp.Eligible != tc.eligible {
			t.Fatalf("query %q: expected eligible=%v, got %v", tc.query, tc.eligible, resp.Eligible)
		}
	}

	// A user that was never registered is not eligible, not a 404.
	rec := env.do(t, http.MethodGet, fmt.Sprintf("/kyc/users/%s/eligibility?level=1", uuid.NewString()), nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown user, got %d", rec.Code)
	}
	if resp := decodeBody[EligibilityResponse](t, rec); resp.Eligible {
		t.Fatalf("expected unknown user to be ineligible")
	}

	rec = env.do(t, http.MethodGet, base+"?level=banana", nil, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed level, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, base+"?countries=XX", nil, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported country filter, got %d", rec.Code)
	}
}
