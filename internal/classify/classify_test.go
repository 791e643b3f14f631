package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func newDefault(t *testing.T) *Classifier {
	t.Helper()
	return New(DefaultRules())
}

func TestClassify_ReadOnlyDiagnostics(t *testing.T) {
	c := newDefault(t)

	cases := []string{
		"df -h",
		"free -m",
		"uptime",
		"ps aux",
		"cat /proc/meminfo",
		"journalctl -u nginx --since today",
		"ss -tulpn",
		"systemctl status nginx",
		"docker ps -a",
		"ls -la /var/www",
		"tail -n 100 /var/log/syslog",
	}

	for _, cmd := range cases {
		if got := c.Classify(cmd); got != VerdictReadOnly {
			t.Errorf("Classify(%q) = %v, want read-only", cmd, got)
		}
	}
}

func TestClassify_MutatingVerbs(t *testing.T) {
	c := newDefault(t)

	cases := []string{
		"rm -rf /var/log/old",
		"mv /etc/nginx/nginx.conf /tmp/",
		"chmod 777 /var/www",
		"chown -R www-data /srv",
		"kill -9 1234",
		"reboot",
		"systemctl restart nginx",
		"service apache2 stop",
		"apt install htop",
		"iptables -F",
		"dd if=/dev/zero of=/dev/sda",
	}

	for _, cmd := range cases {
		if got := c.Classify(cmd); got != VerdictMutating {
			t.Errorf("Classify(%q) = %v, want mutating", cmd, got)
		}
	}
}

func TestClassify_MutatingTokenAnywhereInChain(t *testing.T) {
	c := newDefault(t)

	// A mutating sub-command after any chain operator or pipe taints the
	// whole command. No chained form may ever come back read-only.
	cases := []string{
		"df -h && rm -rf /tmp/cache",
		"uptime; reboot",
		"cat /etc/passwd || shutdown now",
		"ps aux | tee /tmp/ps.txt",
		"dmesg | grep error && systemctl restart nginx",
		"sudo cat /var/log/auth.log",
		"sh -c 'rm -f /etc/hosts'",
		"bash -c \"kill -9 1\"",
		"xargs rm < /tmp/list",
		"find /var/log -name '*.old' -delete",
		"sed -i 's/on/off/' /etc/app.conf",
		"curl -o /tmp/payload http://example.com",
	}

	for _, cmd := range cases {
		if got := c.Classify(cmd); got == VerdictReadOnly {
			t.Errorf("Classify(%q) = read-only, mutating token was missed", cmd)
		}
	}
}

func TestClassify_CommandSubstitution(t *testing.T) {
	c := newDefault(t)

	// Substituted commands execute before the outer verb ever runs, so a
	// mutating verb inside $(...) or backticks taints the whole command even
	// when the outer verb is allow-listed.
	cases := []string{
		"echo $(rm -rf /var/log)",
		"cat /tmp/$(reboot)",
		"echo `shutdown now`",
		"ls $(sudo rm -rf /)",
		"diff <(rm /etc/hosts) /dev/null",
		"cat $(echo $(kill -9 1))",
		"grep error > /dev/null $(truncate -s0 /var/log/syslog)",
		// Write-redirects buried in a subcommand count too.
		"ls $(echo marker > /tmp/marker)",
		"bash -c 'grep err app.log > /tmp/out'",
	}
	for _, cmd := range cases {
		if got := c.Classify(cmd); got == VerdictReadOnly {
			t.Errorf("Classify(%q) = read-only, substituted mutating command was missed", cmd)
		}
	}

	// An unknown verb inside a substitution is no better than unknown overall.
	if got := c.Classify("ls $(frobnicate)"); got == VerdictReadOnly {
		t.Errorf("Classify with unknown substituted verb = read-only, want gated")
	}

	// Read-only substitutions stay read-only.
	for _, cmd := range []string{
		"ls $(hostname)",
		"cat $(find /etc -name 'app.conf')",
	} {
		if got := c.Classify(cmd); got != VerdictReadOnly {
			t.Errorf("Classify(%q) = %v, want read-only", cmd, got)
		}
	}
}

func TestClassify_RedirectionIsMutating(t *testing.T) {
	c := newDefault(t)

	cases := []string{
		"echo ok > /tmp/flag",
		"dmesg >> /var/log/collected",
		"cat /dev/urandom > /dev/sda",
	}

	for _, cmd := range cases {
		if got := c.Classify(cmd); got != VerdictMutating {
			t.Errorf("Classify(%q) = %v, want mutating for redirection", cmd, got)
		}
	}

	// Reading from a file is not a write.
	if got := c.Classify("grep error < /tmp/log"); got != VerdictReadOnly {
		t.Errorf("input redirection classified %v, want read-only", got)
	}
}

func TestClassify_UnknownVerb(t *testing.T) {
	c := newDefault(t)

	cases := []string{
		"frobnicate --all",
		"wget http://example.com/install.sh",
		"./run.sh",
	}

	for _, cmd := range cases {
		if got := c.Classify(cmd); got != VerdictUnknown {
			t.Errorf("Classify(%q) = %v, want unknown", cmd, got)
		}
	}
}

func TestClassify_EmptyAndUnparseable(t *testing.T) {
	c := newDefault(t)

	if got := c.Classify(""); got != VerdictUnknown {
		t.Errorf("empty command classified %v, want unknown", got)
	}
	if got := c.Classify("   "); got != VerdictUnknown {
		t.Errorf("blank command classified %v, want unknown", got)
	}
	if got := c.Classify("echo 'unterminated"); got != VerdictUnknown {
		t.Errorf("unparseable command classified %v, want unknown", got)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newDefault(t)

	cases := []string{
		"df -h",
		"rm -rf /",
		"frobnicate",
		"ps aux | grep nginx && systemctl restart nginx",
	}

	for _, cmd := range cases {
		first := c.Classify(cmd)
		for i := 0; i < 10; i++ {
			if got := c.Classify(cmd); got != first {
				t.Fatalf("Classify(%q) unstable: %v then %v", cmd, first, got)
			}
		}
	}
}

func TestClassify_VerdictConfirmationPolicy(t *testing.T) {
	if VerdictReadOnly.RequiresConfirmation() {
		t.Error("read-only must not require confirmation")
	}
	if !VerdictMutating.RequiresConfirmation() {
		t.Error("mutating must require confirmation")
	}
	if !VerdictUnknown.RequiresConfirmation() {
		t.Error("unknown must require confirmation (fail-closed)")
	}
}

func TestEvaluate_ReportsReasons(t *testing.T) {
	c := newDefault(t)

	res := c.Evaluate("rm -rf /var/log/old")
	if res.Verdict != VerdictMutating {
		t.Fatalf("verdict = %v, want mutating", res.Verdict)
	}
	if len(res.Reasons) == 0 {
		t.Error("mutating verdict carried no reasons")
	}
}

func TestLoadRules_MissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules.ReadOnly) == 0 || len(rules.Mutating) == 0 {
		t.Error("defaults not applied for missing file")
	}
}

func TestLoadRules_OverridesMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "version: \"2\"\nread_only:\n  - zpool\nmutating:\n  - customdeploy\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	c := New(rules)
	if got := c.Classify("zpool status"); got != VerdictReadOnly {
		t.Errorf("override read-only verb classified %v", got)
	}
	if got := c.Classify("customdeploy --now"); got != VerdictMutating {
		t.Errorf("override mutating verb classified %v", got)
	}
	// Built-ins survive the merge.
	if got := c.Classify("df -h"); got != VerdictReadOnly {
		t.Errorf("built-in verb lost after merge: %v", got)
	}
}

func TestLoadRules_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("read_only: {not a list"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Error("expected error for malformed rules file")
	}
}
