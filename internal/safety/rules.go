package safety

import (
	"regexp"
	"strings"
)

// Category classifies what kind of threat a rule covers.
type Category int

const (
	CategoryNone Category = iota
	CategoryDestructive
	CategoryCredential
	CategoryPII
	CategoryInjection
	CategoryUnsafeURL
)

// String returns the wire name used in error payloads and audit events.
func (c Category) String() string {
	switch c {
	case CategoryDestructive:
		return "Destructive"
	case CategoryCredential:
		return "Credential"
	case CategoryPII:
		return "PII"
	case CategoryInjection:
		return "Injection"
	case CategoryUnsafeURL:
		return "UnsafeURL"
	default:
		return "None"
	}
}

// Severity ranks how damaging a matched rule is.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Outcome is the enforcement decision for a verdict.
type Outcome int

const (
	OutcomeAllow Outcome = iota + 1
	OutcomeBlock
	OutcomeRedact
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeBlock:
		return "block"
	case OutcomeRedact:
		return "redact"
	default:
		return "unspecified"
	}
}

// Hint narrows which rule groups apply to an argument. Key-combination rules
// only make sense for the key tool; everything else gets the full text pass.
type Hint int

const (
	HintText Hint = iota
	HintKey
	HintURL
)

// Rule is a single immutable detection rule. A rule matches either by
// compiled regex or by lowercase literal substring; literals are the cheap
// cost class, regexes the expensive one.
type Rule struct {
	ID       string
	Category Category
	Severity Severity
	Outcome  Outcome
	Detail   string // pattern description, safe to surface; never input text

	re      *regexp.Regexp
	literal string // lowercased; used when re is nil
}

// Cheap reports whether the rule is a literal-substring test.
func (r *Rule) Cheap() bool { return r.re == nil }

// Matches tests the rule against the original text and its lowercase form.
func (r *Rule) Matches(text, lower string) bool {
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(lower, r.literal)
}

func lit(id string, cat Category, sev Severity, out Outcome, substr, detail string) Rule {
	return Rule{ID: id, Category: cat, Severity: sev, Outcome: out, Detail: detail, literal: strings.ToLower(substr)}
}

func rx(id string, cat Category, sev Severity, out Outcome, pattern, detail string) Rule {
	return Rule{ID: id, Category: cat, Severity: sev, Outcome: out, Detail: detail, re: regexp.MustCompile(pattern)}
}

// RuleSet is an immutable, versioned collection of rules, grouped in
// evaluation order. The version participates in the verdict cache key, so a
// replaced set can never serve stale verdicts.
type RuleSet struct {
	version   uint64
	groups    [][]Rule // Destructive → Credential → PII → Injection → UnsafeURL
	keyCombos []Rule   // evaluated only under HintKey, before the groups

	// High-frequency literal markers for the cheap pre-filter. If none of
	// these occur in the lowercased input and the input has a known-safe
	// shape, the expensive pass is skipped entirely.
	markers []string

	// noPrefilter disables the pre-filter when merged regex rules exist
	// that the marker list cannot account for.
	noPrefilter bool
}

// Version returns the monotonically increasing rule-set version.
func (rs *RuleSet) Version() uint64 { return rs.version }

// Len returns the total rule count across all groups.
func (rs *RuleSet) Len() int {
	n := len(rs.keyCombos)
	for _, g := range rs.groups {
		n += len(g)
	}
	return n
}

// Merge returns a new RuleSet with extra rules appended to the end of their
// category's group (later declaration loses ties, preserving the contract
// that built-in rules win). The version is bumped. Literal extras join the
// marker list; a regex extra the markers cannot account for turns the
// pre-filter off so the new rule can never be skipped.
func (rs *RuleSet) Merge(extra []Rule) *RuleSet {
	next := &RuleSet{
		version:     rs.version + 1,
		groups:      make([][]Rule, len(rs.groups)),
		keyCombos:   rs.keyCombos,
		markers:     append([]string(nil), rs.markers...),
		noPrefilter: rs.noPrefilter,
	}
	for i, g := range rs.groups {
		next.groups[i] = append([]Rule(nil), g...)
	}
	for _, r := range extra {
		idx := groupIndex(r.Category)
		if idx < 0 {
			continue
		}
		next.groups[idx] = append(next.groups[idx], r)
		if r.Cheap() {
			next.markers = append(next.markers, r.literal)
		} else {
			next.noPrefilter = true
		}
	}
	return next
}

func groupIndex(c Category) int {
	switch c {
	case CategoryDestructive:
		return 0
	case CategoryCredential:
		return 1
	case CategoryPII:
		return 2
	case CategoryInjection:
		return 3
	case CategoryUnsafeURL:
		return 4
	default:
		return -1
	}
}

// Destructive commands and system-damage patterns. The literal rules double
// as pre-filter markers.
var destructiveRules = []Rule{
	rx("destructive.rm_rf_root", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)rm\s+(-[a-z]*\s+)*-[a-z]*rf?[a-z]*\s+/`, "recursive filesystem deletion"),
	lit("destructive.rm_rf", CategoryDestructive, SeverityCritical, OutcomeBlock,
		"rm -rf", "recursive filesystem deletion"),
	rx("destructive.del_force", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)del\s+/f\s+/s\s+/q`, "forced recursive deletion (Windows)"),
	rx("destructive.del_system", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)del\s+.*(system32|\\windows\\)`, "deletion targeting Windows system files"),
	rx("destructive.format_drive", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)format\s+[a-z]:`, "drive format command"),
	rx("destructive.dd_device", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)dd\s+if=/dev/(zero|random|urandom)\s+of=/dev/[sh]d`, "raw disk overwrite"),
	rx("destructive.mkfs", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)mkfs\.`, "filesystem format command"),
	rx("destructive.write_device", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`>{1,2}\s*/dev/(sd|hd|nvme)`, "write redirected to disk device"),
	rx("destructive.chmod_root", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)chmod\s+(-[a-z]+\s+)*777\s+/`, "world-writable permissions on root"),
	rx("destructive.chmod_recursive", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)chmod\s+.*-r.*777`, "recursive world-writable permissions"),
	rx("destructive.chown_recursive", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)chown\s+.*(-r\b|--recursive)`, "recursive ownership change"),
	rx("destructive.usermod_admin", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)usermod.*-ag\s+(sudo|wheel|admin)`, "admin group escalation"),
	rx("destructive.passwd_root", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)passwd\s+(root|admin)`, "privileged password change"),
	rx("destructive.fork_bomb", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`:\s*\(\s*\)\s*\{.*:\s*\|`, "shell fork bomb"),
	lit("destructive.fork_bomb_compact", CategoryDestructive, SeverityCritical, OutcomeBlock,
		":(){:|:&};:", "shell fork bomb"),
	rx("destructive.infinite_loop", CategoryDestructive, SeverityMedium, OutcomeBlock,
		`(?i)while\s*true.*do.*done`, "unbounded shell loop"),
	rx("destructive.sudo", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)(^|[;&|]\s*)\s*(sudo|doas|pkexec|runas)\s`, "privilege escalation command"),
	rx("destructive.su_root", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)(^|[;&|]\s*)\s*su\s+(-|root)\b`, "switch to root user"),
	rx("destructive.git_force", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)git\s+.*--force`, "forced git operation"),
	rx("destructive.git_reset_hard", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)git\s+reset\s+--hard`, "hard git reset"),
	rx("destructive.kill_all", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)kill\s+-9\s+-1`, "kill all processes"),
	rx("destructive.killall", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)\b(killall|pkill\s+-9)\b`, "bulk process kill"),
	rx("destructive.shutdown", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)\b(shutdown|reboot|halt|poweroff)\b\s+(-|now)`, "system shutdown command"),
	rx("destructive.sensitive_files", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`/etc/(passwd|shadow|sudoers)`, "system credential file access"),
	rx("destructive.proc_environ", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`/proc/self/environ`, "process environment dump"),
	rx("destructive.ssh_key_read", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)cat\s+.*\.ssh/.*key`, "SSH key read"),
	rx("destructive.reverse_shell", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(bash|sh|zsh|ksh|csh)\s+-i\s+>&\s*/dev/tcp/`, "reverse shell"),
	rx("destructive.dev_tcp", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`/dev/tcp/[0-9.]+/[0-9]+`, "raw TCP device redirection"),
	rx("destructive.netcat_listen", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)\b(nc|netcat|ncat|socat)\s+-[lve]`, "network listener"),
	rx("destructive.exfil_pipe", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)(tar|zip|7z|rar|base64)\s+.*\|\s*(nc|netcat|curl|wget)`, "data exfiltration pipe"),
}

// Credential shapes. Most carry a Redact verdict: the typed material is the
// caller's own, but transcripts and audit events must store a hash, not the
// secret. Connection strings and private-key blocks stay Block; typing those
// through an automation channel is never legitimate.
var credentialRules = []Rule{
	rx("credential.private_key", CategoryCredential, SeverityCritical, OutcomeBlock,
		`(?i)-----BEGIN[^-]+PRIVATE\s+KEY`, "private key block"),
	rx("credential.connection_string", CategoryCredential, SeverityCritical, OutcomeBlock,
		`(?i)\b(mysql|mariadb|mongodb|postgres|postgresql|redis|ftp|sftp|ssh)://[^:\s]+:[^@\s]+@`, "connection string with embedded credentials"),
	rx("credential.aws_access_key", CategoryCredential, SeverityCritical, OutcomeRedact,
		`\bAKIA[0-9A-Z]{16}\b`, "AWS access key id"),
	rx("credential.openai_key", CategoryCredential, SeverityCritical, OutcomeRedact,
		`\bsk-[a-zA-Z0-9]{40,}\b`, "OpenAI-style secret key"),
	rx("credential.github_token", CategoryCredential, SeverityCritical, OutcomeRedact,
		`\bgh[pos]_[a-zA-Z0-9]{16,}\b`, "GitHub token"),
	rx("credential.gitlab_token", CategoryCredential, SeverityCritical, OutcomeRedact,
		`\bglpat-[a-zA-Z0-9\-_]{20,}\b`, "GitLab token"),
	rx("credential.bearer_header", CategoryCredential, SeverityHigh, OutcomeRedact,
		`(?i)authorization[:\s]+(bearer|basic)\s+[a-zA-Z0-9\-._~+/=]+`, "authorization header"),
	rx("credential.env_password", CategoryCredential, SeverityHigh, OutcomeRedact,
		`(?i)\b(PGPASSWORD|MYSQL_PWD|AWS_SECRET_ACCESS_KEY)=`, "credential environment variable"),
	rx("credential.password_flag", CategoryCredential, SeverityHigh, OutcomeRedact,
		`(?i)--?pass(word)?[=\s]+\S+`, "password command-line flag"),
	rx("credential.password_field", CategoryCredential, SeverityMedium, OutcomeRedact,
		`(?i)\b(password|passwd|secret[_-]?key|api[_-]?key|apikey|access[_-]?token|auth[_-]?token|client[_-]?secret)\s*[:=]\s*\S+`, "credential assignment"),
}

// PII shapes, one high-precision pattern per type.
var piiRules = []Rule{
	rx("pii.ssn", CategoryPII, SeverityHigh, OutcomeRedact,
		`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`, "US Social Security Number"),
	rx("pii.card_visa", CategoryPII, SeverityHigh, OutcomeRedact,
		`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, "credit card number (Visa)"),
	rx("pii.card_mastercard", CategoryPII, SeverityHigh, OutcomeRedact,
		`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, "credit card number (Mastercard)"),
	rx("pii.card_amex", CategoryPII, SeverityHigh, OutcomeRedact,
		`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`, "credit card number (Amex)"),
	rx("pii.email", CategoryPII, SeverityMedium, OutcomeRedact,
		`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`, "email address"),
	rx("pii.phone_us", CategoryPII, SeverityLow, OutcomeRedact,
		`\(\d{3}\)\s?\d{3}[-.]\d{4}\b`, "phone number (US)"),
}

// Injection signatures: SQL, shell, template, NoSQL, path traversal, and the
// Unicode tricks used to smuggle any of the above past substring checks.
var injectionRules = []Rule{
	rx("injection.sql_stacked", CategoryInjection, SeverityHigh, OutcomeBlock,
		`(?i)['"]?;\s*(DROP|DELETE|TRUNCATE|ALTER|UPDATE|INSERT)\b`, "stacked SQL statement"),
	rx("injection.sql_union", CategoryInjection, SeverityHigh, OutcomeBlock,
		`(?i)\bUNION\s+(ALL\s+)?SELECT\b`, "SQL UNION SELECT"),
	rx("injection.sql_tautology", CategoryInjection, SeverityHigh, OutcomeBlock,
		`(?i)\s+(OR|AND)\s+['"]?1['"]?\s*=\s*['"]?1`, "SQL tautology"),
	rx("injection.shell_chain", CategoryInjection, SeverityHigh, OutcomeBlock,
		`[;&|]\s*(rm|del|format|chmod|chown|nc|netcat|curl|wget|bash|sh|zsh)\b`, "chained shell command"),
	rx("injection.backtick_subst", CategoryInjection, SeverityHigh, OutcomeBlock,
		"`[^`]+`", "backtick command substitution"),
	rx("injection.dollar_subst", CategoryInjection, SeverityHigh, OutcomeBlock,
		`\$\([^)]+\)`, "command substitution"),
	rx("injection.pipe_shell", CategoryInjection, SeverityHigh, OutcomeBlock,
		`\|\s*(bash|sh|zsh|ksh)\b`, "pipe to shell"),
	rx("injection.newline_cmd", CategoryInjection, SeverityMedium, OutcomeBlock,
		`\\n\s*(rm|del|format)\b`, "newline command injection"),
	rx("injection.escaped_control", CategoryInjection, SeverityMedium, OutcomeBlock,
		`\\x[0-9a-fA-F]{2}|\\u[0-9a-fA-F]{4}|\\[0-7]{1,3}`, "escaped control sequence"),
	rx("injection.crlf", CategoryInjection, SeverityMedium, OutcomeBlock,
		`(?i)(%0a|%0d)`, "encoded line break"),
	rx("injection.path_traversal", CategoryInjection, SeverityHigh, OutcomeBlock,
		`(?i)(\.\.[/\\]|%2e%2e[/\\]|%252e%252e|\.\.%2f|\.\.%5c)`, "path traversal sequence"),
	rx("injection.nosql_operator", CategoryInjection, SeverityMedium, OutcomeBlock,
		`\{\s*['"]?\$(ne|gt|regex|where)['"]?\s*:`, "NoSQL operator injection"),
	rx("injection.template", CategoryInjection, SeverityMedium, OutcomeBlock,
		`\{\{\s*(config|\d+\s*[*+\-/])|\{%\s*.*\s*%\}|<%=\s*\d+\s*[*+\-/]`, "template expression injection"),
	rx("injection.csv_formula", CategoryInjection, SeverityLow, OutcomeBlock,
		`^[=+@]\s*[A-Z]+\s*\(`, "spreadsheet formula injection"),
	rx("injection.zero_width", CategoryInjection, SeverityHigh, OutcomeBlock,
		"[\u200b\u200c\u200d\u2060\u2064\ufeff]", "zero-width character"),
	rx("injection.bidi_override", CategoryInjection, SeverityHigh, OutcomeBlock,
		"[\u202a-\u202e\u2066-\u2069]", "bidirectional control character"),
	rx("injection.line_separator", CategoryInjection, SeverityMedium, OutcomeBlock,
		"[\u2028\u2029]", "Unicode line separator"),
}

// Unsafe URL schemes from the original navigation checks. file: and the
// script schemes execute or leak local content when typed into a focused
// address bar, so they apply to all text, not only URL-hinted arguments.
var unsafeURLRules = []Rule{
	rx("url.file_scheme", CategoryUnsafeURL, SeverityHigh, OutcomeBlock,
		`(?i)\bfile://`, "file: URL scheme"),
	rx("url.javascript_scheme", CategoryUnsafeURL, SeverityHigh, OutcomeBlock,
		`(?i)\bjavascript:`, "javascript: URL scheme"),
	rx("url.data_scheme", CategoryUnsafeURL, SeverityMedium, OutcomeBlock,
		`(?i)\bdata:[^,]*;base64,`, "base64 data: URL"),
	rx("url.vbscript_scheme", CategoryUnsafeURL, SeverityHigh, OutcomeBlock,
		`(?i)\bvbscript:`, "vbscript: URL scheme"),
	rx("url.local_address", CategoryUnsafeURL, SeverityMedium, OutcomeBlock,
		`(?i)^https?://(localhost|127\.|192\.168\.|10\.|172\.(1[6-9]|2[0-9]|3[01])\.|\[::1\])`, "local network address"),
}

// Key combinations that close, kill, or switch away from the controlled
// session. Evaluated only for the key tool.
var keyComboRules = []Rule{
	rx("key.alt_f4", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)alt\+f4`, "window close combination"),
	rx("key.ctrl_alt_del", CategoryDestructive, SeverityCritical, OutcomeBlock,
		`(?i)ctrl\+alt\+del`, "secure attention sequence"),
	rx("key.ctrl_shift_esc", CategoryDestructive, SeverityMedium, OutcomeBlock,
		`(?i)ctrl\+shift\+esc`, "task manager combination"),
	rx("key.ctrl_w", CategoryDestructive, SeverityMedium, OutcomeBlock,
		`(?i)^ctrl\+w$`, "tab close combination"),
	rx("key.cmd_q", CategoryDestructive, SeverityHigh, OutcomeBlock,
		`(?i)cmd\+q`, "application quit combination"),
	rx("key.meta_prefix", CategoryDestructive, SeverityMedium, OutcomeBlock,
		`(?i)^(super|win|cmd)\+`, "system shortcut prefix"),
	rx("key.alt_tab", CategoryDestructive, SeverityMedium, OutcomeBlock,
		`(?i)(alt|cmd)\+tab`, "window switch combination"),
}

// prefilterMarkers are cheap lowercase substrings; at least one occurs in
// every input any expensive rule can match that doesn't already fail the
// safe-shape test. A false marker hit only costs one expensive pass, a
// missed one would skip detection, so the list errs broad.
var prefilterMarkers = []string{
	"rm ", "del ", "format", "mkfs", "dd ", "chmod", "chown",
	"sudo", "su ", "doas", "pkexec", "runas", "usermod",
	"kill", "shutdown", "reboot", "halt", "poweroff", "while", "git ",
	"/etc/", "/dev/", "/proc/", ".ssh",
	"nc ", "ncat", "netcat", "socat", "curl", "wget", "bash", " sh ",
	"select", "union", "drop", "insert", "delete", "truncate",
	"pass", "secret", "token", "api", "key", "bearer", "authorization",
	"akia", "sk-", "ghp_", "gho_", "ghs_", "glpat-", "begin",
	"://", "javascript:", "vbscript:", "data:", "file:",
	"..", "${", "$(", "`", "{{", "{%", "<%", ";", "|", "&", "@", "=", "\\",
}

// DefaultRuleSet returns the built-in rule catalog at version 1.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		version: 1,
		groups: [][]Rule{
			destructiveRules,
			credentialRules,
			piiRules,
			injectionRules,
			unsafeURLRules,
		},
		keyCombos: keyComboRules,
		markers:   prefilterMarkers,
	}
}
