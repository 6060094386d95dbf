package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goReset/jwt"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalidEmail = errors.New("invalid email")
	errRateLimited  = errors.New("rate limited")
	errUnknown      = errors.New("unknown identity")
	errIdentity     = errors.New("identity unavailable")
	errStore        = errors.New("store unavailable")
	errNotifier     = errors.New("notifier failed")
	errMismatch     = errors.New("mismatch")
	errExpired      = errors.New("expired")
	errNoPending    = errors.New("no pending")
	errSink         = errors.New("sink failed")
	errNotFound     = errors.New("token not found")
	errUsed         = errors.New("token used")
	errTokenInvalid = errors.New("token invalid")
)

type recorder struct {
	steps  []string
	events []string
}

func (r *recorder) step(name string) { r.steps = append(r.steps, name) }

func (r *recorder) audit(_ context.Context, event string, success bool, _, _ string, _ error, _ func() map[string]string) {
	if success {
		r.events = append(r.events, event+":ok")
		return
	}
	r.events = append(r.events, event+":fail")
}

func requestDeps(r *recorder) CodeRequestDeps {
	return CodeRequestDeps{
		CheckLimiter: func(context.Context, string, string) error {
			r.step("limit")
			return nil
		},
		IdentityExists: func(context.Context, string) (bool, error) {
			r.step("identity")
			return true, nil
		},
		IssueCode: func(context.Context, string) (IssuedCode, error) {
			r.step("issue")
			return IssuedCode{Value: "123456", ExpiresIn: 5 * time.Minute}, nil
		},
		DiscardCode: func(context.Context, string) error {
			r.step("discard")
			return nil
		},
		SendCode: func(context.Context, string, IssuedCode) error {
			r.step("send")
			return nil
		},
		EmitAudit: r.audit,
		Events: CodeRequestEvents{
			CodeRequested:      "code_requested",
			CodeRateLimited:    "code_rate_limited",
			CodeDeliveryFailed: "code_delivery_failed",
		},
		Errors: CodeRequestErrors{
			EngineNotReady:      errNotReady,
			InvalidEmail:        errInvalidEmail,
			RateLimited:         errRateLimited,
			UnknownIdentity:     errUnknown,
			IdentityUnavailable: errIdentity,
			StoreUnavailable:    errStore,
			NotifierFailed:      errNotifier,
		},
	}
}

func TestRequestCodeHappyPathOrder(t *testing.T) {
	r := &recorder{}
	if err := RunRequestCode(context.Background(), "a@x.com", requestDeps(r)); err != nil {
		t.Fatalf("request: %v", err)
	}
	want := []string{"limit", "identity", "issue", "send"}
	if len(r.steps) != len(want) {
		t.Fatalf("steps = %v, want %v", r.steps, want)
	}
	for i := range want {
		if r.steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", r.steps, want)
		}
	}
}

func TestRequestCodeRateLimitedStopsBeforeIssue(t *testing.T) {
	r := &recorder{}
	deps := requestDeps(r)
	deps.CheckLimiter = func(context.Context, string, string) error { return errRateLimited }

	err := RunRequestCode(context.Background(), "a@x.com", deps)
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(r.steps) != 0 {
		t.Fatalf("nothing may run after a limiter rejection, got %v", r.steps)
	}
	if len(r.events) != 1 || r.events[0] != "code_rate_limited:fail" {
		t.Fatalf("unexpected audit %v", r.events)
	}
}

func TestRequestCodeUnknownIdentity(t *testing.T) {
	r := &recorder{}
	deps := requestDeps(r)
	deps.IdentityExists = func(context.Context, string) (bool, error) { return false, nil }

	if err := RunRequestCode(context.Background(), "a@x.com", deps); !errors.Is(err, errUnknown) {
		t.Fatalf("expected unknown identity, got %v", err)
	}
}

func TestRequestCodeResolverFailureIsWrapped(t *testing.T) {
	r := &recorder{}
	deps := requestDeps(r)
	deps.IdentityExists = func(context.Context, string) (bool, error) { return false, errors.New("table missing") }

	if err := RunRequestCode(context.Background(), "a@x.com", deps); !errors.Is(err, errIdentity) {
		t.Fatalf("expected identity unavailable, got %v", err)
	}
}

func TestRequestCodeDeliveryFailureDiscards(t *testing.T) {
	r := &recorder{}
	deps := requestDeps(r)
	deps.SendCode = func(context.Context, string, IssuedCode) error {
		r.step("send")
		return errors.New("smtp down")
	}

	err := RunRequestCode(context.Background(), "a@x.com", deps)
	if !errors.Is(err, errNotifier) {
		t.Fatalf("expected notifier failure, got %v", err)
	}
	if last := r.steps[len(r.steps)-1]; last != "discard" {
		t.Fatalf("expected discard after failed send, got %v", r.steps)
	}
}

func TestRequestCodeInvalidEmail(t *testing.T) {
	r := &recorder{}
	deps := requestDeps(r)
	deps.ValidEmail = func(string) bool { return false }

	if err := RunRequestCode(context.Background(), "nope", deps); !errors.Is(err, errInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if len(r.steps) != 0 {
		t.Fatalf("invalid input must not reach the limiter, got %v", r.steps)
	}
}

func verifyDeps(r *recorder, outcome VerifyOutcome) CodeVerifyDeps {
	return CodeVerifyDeps{
		VerifyCode: func(context.Context, string, string) (VerifyOutcome, error) {
			r.step("verify")
			return outcome, nil
		},
		MintToken: func(string) (MintedToken, error) {
			r.step("mint")
			return MintedToken{Token: "t", JTI: "j", ExpiresIn: 15 * time.Minute}, nil
		},
		RegisterToken: func(context.Context, string, string, time.Duration) error {
			r.step("register")
			return nil
		},
		PersistToken: func(context.Context, string, MintedToken) error {
			r.step("persist")
			return nil
		},
		EmitAudit: r.audit,
		Errors: CodeVerifyErrors{
			EngineNotReady:   errNotReady,
			InvalidEmail:     errInvalidEmail,
			InvalidCode:      errors.New("invalid code"),
			NoPendingCode:    errNoPending,
			CodeMismatch:     errMismatch,
			CodeExpired:      errExpired,
			StoreUnavailable: errStore,
			SignerFailed:     errors.New("signer failed"),
			TokenSinkFailed:  errSink,
		},
	}
}

func TestVerifyCodeOutcomesMapToErrors(t *testing.T) {
	cases := []struct {
		outcome VerifyOutcome
		want    error
	}{
		{VerifyMismatch, errMismatch},
		{VerifyExpired, errExpired},
		{VerifyNoPendingCode, errNoPending},
	}
	for _, tc := range cases {
		r := &recorder{}
		_, err := RunVerifyCode(context.Background(), "a@x.com", "123456", verifyDeps(r, tc.outcome))
		if !errors.Is(err, tc.want) {
			t.Fatalf("outcome %v: expected %v, got %v", tc.outcome, tc.want, err)
		}
		if len(r.steps) != 1 {
			t.Fatalf("outcome %v: nothing may be minted, got %v", tc.outcome, r.steps)
		}
	}
}

func TestVerifyCodeValidMintsRegistersPersists(t *testing.T) {
	r := &recorder{}
	minted, err := RunVerifyCode(context.Background(), "a@x.com", "123456", verifyDeps(r, VerifyValid))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if minted.JTI != "j" {
		t.Fatalf("unexpected mint %+v", minted)
	}
	want := []string{"verify", "mint", "register", "persist"}
	for i := range want {
		if r.steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", r.steps, want)
		}
	}
}

func TestVerifyCodeSinkFailureReturnsNoToken(t *testing.T) {
	r := &recorder{}
	deps := verifyDeps(r, VerifyValid)
	deps.PersistToken = func(context.Context, string, MintedToken) error { return errors.New("dynamo down") }

	minted, err := RunVerifyCode(context.Background(), "a@x.com", "123456", deps)
	if !errors.Is(err, errSink) {
		t.Fatalf("expected sink failure, got %v", err)
	}
	if minted.Token != "" {
		t.Fatal("no token may be returned when the sink fails")
	}
}

func tokenDeps(state TokenState, subject string) TokenDeps {
	return TokenDeps{
		Status: func(context.Context, string) (TokenRecord, error) {
			return TokenRecord{State: state, Email: "a@x.com"}, nil
		},
		MarkUsed: func(context.Context, string) (bool, error) {
			return state != TokenStateNotFound, nil
		},
		VerifyToken: func(string) (*jwt.ResetClaims, error) {
			claims := jwt.NewClaims(subject, "j1", time.Now(), time.Minute)
			return &claims, nil
		},
		Errors: TokenErrors{
			EngineNotReady:   errNotReady,
			InvalidTokenID:   errors.New("invalid jti"),
			TokenNotFound:    errNotFound,
			TokenUsed:        errUsed,
			TokenInvalid:     errTokenInvalid,
			StoreUnavailable: errStore,
		},
	}
}

func TestValidateTokenOnlyLiveWhenUnused(t *testing.T) {
	for state, wantLive := range map[TokenState]bool{
		TokenStateNotFound: false,
		TokenStateUnused:   true,
		TokenStateUsed:     false,
	} {
		live, email, err := RunValidateToken(context.Background(), "j1", tokenDeps(state, "a@x.com"))
		if err != nil {
			t.Fatalf("state %v: %v", state, err)
		}
		if live != wantLive {
			t.Fatalf("state %v: live = %v", state, live)
		}
		if !live && email != "" {
			t.Fatalf("state %v: email must only be returned for live tokens", state)
		}
	}
}

func TestMarkTokenUsedUnknown(t *testing.T) {
	err := RunMarkTokenUsed(context.Background(), "j1", tokenDeps(TokenStateNotFound, "a@x.com"))
	if !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInspectToken(t *testing.T) {
	ctx := context.Background()

	claims, _, err := RunInspectToken(ctx, "tok", tokenDeps(TokenStateUnused, "a@x.com"))
	if err != nil || claims.Subject != "a@x.com" {
		t.Fatalf("live inspect = %v, %v", claims, err)
	}

	if _, _, err := RunInspectToken(ctx, "tok", tokenDeps(TokenStateUsed, "a@x.com")); !errors.Is(err, errUsed) {
		t.Fatalf("expected used, got %v", err)
	}
	if _, _, err := RunInspectToken(ctx, "tok", tokenDeps(TokenStateNotFound, "a@x.com")); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := RunInspectToken(ctx, "tok", tokenDeps(TokenStateUnused, "b@x.com")); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected subject mismatch to be invalid, got %v", err)
	}

	deps := tokenDeps(TokenStateUnused, "a@x.com")
	deps.VerifyToken = func(string) (*jwt.ResetClaims, error) { return nil, errors.New("bad signature") }
	if _, _, err := RunInspectToken(ctx, "tok", deps); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}
