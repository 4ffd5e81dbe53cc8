package core

// Setting is the user's configured scope allowance.
type Setting string

const (
	SettingAll    Setting = "all"
	SettingGlobal Setting = "global"
	SettingLocal  Setting = "local"
	SettingNone   Setting = "none"
)

// BlockReason explains why no scope is currently usable.
type BlockReason string

const (
	// BlockPolicyNone: the user disabled all scopes in settings.
	BlockPolicyNone BlockReason = "policy-none"
	// BlockWorkspaceUntrusted: a local-only setting is blocked because the
	// workspace is not trusted.
	BlockWorkspaceUntrusted BlockReason = "workspace-untrusted"
	// BlockWorkspaceMissing: a local-only setting is blocked because no
	// workspace folder is open.
	BlockWorkspaceMissing BlockReason = "workspace-missing"
	// BlockEnvironment is a defensive fallback. Given the precedence rules
	// above it should be unreachable; tests assert it stays that way.
	BlockEnvironment BlockReason = "local-disallowed-by-environment"
)

// Evaluation is the derived scope policy. Never persisted; recomputed from
// the current environment on every trust/workspace/settings change.
type Evaluation struct {
	// AllowedScopes is the raw setting, as scopes.
	AllowedScopes []Scope
	// EnvironmentScopes is what trust and workspace presence physically permit.
	EnvironmentScopes []Scope
	// EffectiveScopes is the intersection, in [local, global] order.
	EffectiveScopes []Scope
	// BlockedReason is set iff EffectiveScopes is empty.
	BlockedReason BlockReason
}

// Allows reports whether the given scope is effectively permitted.
func (e Evaluation) Allows(scope Scope) bool {
	for _, s := range e.EffectiveScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Blocked reports whether no scope is usable at all.
func (e Evaluation) Blocked() bool {
	return len(e.EffectiveScopes) == 0
}

// settingScopes is the fixed lookup from setting to permitted scopes.
var settingScopes = map[Setting][]Scope{
	SettingAll:    {ScopeLocal, ScopeGlobal},
	SettingGlobal: {ScopeGlobal},
	SettingLocal:  {ScopeLocal},
	SettingNone:   {},
}

// EvaluatePolicy computes the effective scope policy from the user setting
// and the environment. Pure function with no side effects; callers cache the
// last output.
func EvaluatePolicy(setting Setting, trusted, hasWorkspace bool) Evaluation {
	environment := []Scope{ScopeGlobal}
	if trusted && hasWorkspace {
		environment = []Scope{ScopeLocal, ScopeGlobal}
	}

	allowed, ok := settingScopes[setting]
	if !ok {
		// Unknown settings behave like "all"; the settings loader normalizes
		// values before they get here.
		allowed = settingScopes[SettingAll]
	}

	effective := intersectScopes(environment, allowed)

	eval := Evaluation{
		AllowedScopes:     allowed,
		EnvironmentScopes: environment,
		EffectiveScopes:   effective,
	}
	if len(effective) > 0 {
		return eval
	}

	switch {
	case setting == SettingNone:
		eval.BlockedReason = BlockPolicyNone
	case setting == SettingLocal && !trusted:
		eval.BlockedReason = BlockWorkspaceUntrusted
	case setting == SettingLocal && !hasWorkspace:
		eval.BlockedReason = BlockWorkspaceMissing
	default:
		eval.BlockedReason = BlockEnvironment
	}
	return eval
}

// intersectScopes returns the scopes present in both sets, preserving the
// canonical [local, global] order.
func intersectScopes(a, b []Scope) []Scope {
	inA := make(map[Scope]bool, len(a))
	for _, s := range a {
		inA[s] = true
	}
	inB := make(map[Scope]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}

	out := []Scope{}
	for _, s := range []Scope{ScopeLocal, ScopeGlobal} {
		if inA[s] && inB[s] {
			out = append(out, s)
		}
	}
	return out
}
