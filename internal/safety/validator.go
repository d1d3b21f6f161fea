package safety

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Verdict is the classified outcome of evaluating one candidate string.
// Block verdicts carry the category and rule id but never the matched input.
type Verdict struct {
	Outcome     Outcome  `json:"outcome"`
	Category    Category `json:"category"`
	RuleID      string   `json:"rule_id,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Blocked reports whether the verdict forbids the action.
func (v Verdict) Blocked() bool { return v.Outcome == OutcomeBlock }

var allowVerdict = Verdict{Outcome: OutcomeAllow, Category: CategoryNone}

// Stats counts evaluation outcomes by path taken. All counters are atomic;
// tests use them to prove the hot path and the cache actually short-circuit.
type Stats struct {
	PrefilterAllows atomic.Uint64
	CacheHits       atomic.Uint64
	FullScans       atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	PrefilterAllows uint64
	CacheHits       uint64
	FullScans       uint64
}

// Validator evaluates candidate strings against an immutable rule set.
// Evaluation is deterministic for a given (text, hint, rule-set version).
type Validator struct {
	rules  *RuleSet
	cache  *verdictCache
	logger *zap.Logger
	stats  Stats
}

// DefaultCacheSize bounds the verdict cache when no size is configured.
const DefaultCacheSize = 4096

// NewValidator creates a Validator over the given rule set.
func NewValidator(rules *RuleSet, cacheSize int, logger *zap.Logger) *Validator {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Validator{
		rules:  rules,
		cache:  newVerdictCache(cacheSize),
		logger: logger,
	}
}

// RuleSetVersion returns the version of the active rule set.
func (v *Validator) RuleSetVersion() uint64 { return v.rules.version }

// Snapshot returns current instrumentation counters.
func (v *Validator) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PrefilterAllows: v.stats.PrefilterAllows.Load(),
		CacheHits:       v.stats.CacheHits.Load(),
		FullScans:       v.stats.FullScans.Load(),
	}
}

// Evaluate classifies text as Allow, Block, or Redact.
//
// Evaluation order is part of the contract: cheap literal pre-filter first
// (most inputs are short UI labels and coordinates), then the verdict
// cache, then the ordered expensive pass Destructive →
// Credential → PII → Injection → UnsafeURL with first match winning and
// declaration order breaking ties.
func (v *Validator) Evaluate(text string, hint Hint) Verdict {
	if text == "" {
		return allowVerdict
	}

	lower := strings.ToLower(text)

	// Key-combination arguments always take the full pass: they are rare,
	// short, and the combo rules live outside the marker set.
	if hint != HintKey && v.prefilterAllow(text, lower) {
		v.stats.PrefilterAllows.Add(1)
		return allowVerdict
	}

	// NFKC normalization collapses Unicode look-alikes so a full-width or
	// composed variant of a dangerous command hits the same cache entry and
	// the same rules as its plain form.
	normalized := norm.NFKC.String(text)

	key := cacheKey{hash: hashText(normalized), version: v.rules.version, hint: hint}
	if cached, ok := v.cache.get(key); ok {
		v.stats.CacheHits.Add(1)
		return cached
	}

	verdict := v.scan(text, normalized, lower, hint)
	v.cache.put(key, verdict)

	if verdict.Outcome != OutcomeAllow {
		v.logger.Info("safety verdict",
			zap.String("outcome", verdict.Outcome.String()),
			zap.String("category", verdict.Category.String()),
			zap.String("rule_id", verdict.RuleID),
			zap.Uint64("input_hash", key.hash),
		)
	}
	return verdict
}

// prefilterAllow reports whether the input can be allowed without running
// any expensive rule: no cheap marker present and a known-safe shape.
func (v *Validator) prefilterAllow(text, lower string) bool {
	if v.rules.noPrefilter {
		return false
	}
	for _, m := range v.rules.markers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return safeShape(text)
}

// safeShape reports whether text is short, plain ASCII prose with no digit
// run long enough to be a card, SSN, or phone fragment. Anything outside
// this shape goes through the full pass.
func safeShape(text string) bool {
	if len(text) > 64 {
		return false
	}
	digitRun := 0
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			digitRun = 0
		case r >= '0' && r <= '9':
			digitRun++
			if digitRun >= 4 {
				return false
			}
		case strings.ContainsRune(" ,.!?'\"()-_:", r):
			digitRun = 0
		default:
			return false
		}
	}
	return true
}

// scan runs the ordered rule groups. Both the original and NFKC-normalized
// text are tested so normalization bypasses are caught, mirroring the
// original checker's dual pass.
func (v *Validator) scan(text, normalized, lower string, hint Hint) Verdict {
	v.stats.FullScans.Add(1)

	normLower := lower
	if normalized != text {
		normLower = strings.ToLower(normalized)
	}

	if hint == HintKey {
		for i := range v.rules.keyCombos {
			r := &v.rules.keyCombos[i]
			if r.Matches(text, lower) {
				return verdictFor(r)
			}
		}
	}

	for _, group := range v.rules.groups {
		for i := range group {
			r := &group[i]
			if r.Matches(text, lower) || (normalized != text && r.Matches(normalized, normLower)) {
				return verdictFor(r)
			}
		}
	}
	return allowVerdict
}

func verdictFor(r *Rule) Verdict {
	return Verdict{
		Outcome:     r.Outcome,
		Category:    r.Category,
		RuleID:      r.ID,
		Explanation: fmt.Sprintf("%s rule %s matched: %s", r.Category, r.ID, r.Detail),
	}
}
