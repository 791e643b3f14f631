package classify

// Rules is the policy input to the classifier. The built-in lists cover common
// Linux diagnostics; deployments extend or override them through a YAML rules
// file. Verbs are single executables; phrases are "verb subcommand" pairs that
// take precedence over the verb lists, which is how "systemctl status" stays
// diagnostic while "systemctl restart" does not.
type Rules struct {
	Version         string   `yaml:"version"`
	ReadOnly        []string `yaml:"read_only"`
	Mutating        []string `yaml:"mutating"`
	ReadOnlyPhrases []string `yaml:"read_only_phrases"`
	MutatingPhrases []string `yaml:"mutating_phrases"`
}

// Merge returns a copy of r extended with the override lists.
func (r Rules) Merge(overrides Rules) Rules {
	merged := Rules{Version: r.Version}
	if overrides.Version != "" {
		merged.Version = overrides.Version
	}
	merged.ReadOnly = append(append([]string{}, r.ReadOnly...), overrides.ReadOnly...)
	merged.Mutating = append(append([]string{}, r.Mutating...), overrides.Mutating...)
	merged.ReadOnlyPhrases = append(append([]string{}, r.ReadOnlyPhrases...), overrides.ReadOnlyPhrases...)
	merged.MutatingPhrases = append(append([]string{}, r.MutatingPhrases...), overrides.MutatingPhrases...)
	return merged
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		Version: "1",
		ReadOnly: []string{
			// Filesystem and storage inspection
			"ls", "cat", "head", "tail", "less", "more", "stat", "file",
			"df", "du", "lsblk", "mount", "findmnt", "find", "wc",
			// Process and resource inspection
			"ps", "top", "htop", "pgrep", "uptime", "free", "vmstat",
			"iostat", "sar", "lsof", "nproc",
			// System identity and logs
			"uname", "hostname", "hostnamectl", "dmesg", "journalctl",
			"last", "who", "w", "id", "date", "env", "printenv",
			// Networking inspection
			"ip", "ss", "netstat", "ping", "traceroute", "dig", "nslookup",
			"host", "arp", "ethtool",
			// Text processing commonly piped in diagnostics
			"grep", "egrep", "fgrep", "awk", "sed", "sort", "uniq", "cut",
			"tr", "column", "xargs", "jq", "echo",
			// Wrappers whose wrapped command is classified separately
			"watch", "timeout", "nohup", "nice",
			// Network probes that read unless told to write
			"curl",
			// Package and service inspection
			"dpkg", "rpm", "which", "whereis", "type",
		},
		Mutating: []string{
			// Filesystem writes and destruction
			"rm", "rmdir", "mv", "cp", "dd", "shred", "truncate", "touch",
			"mkdir", "ln", "tee", "mkfs", "fdisk", "parted", "wipefs",
			// Permissions and ownership
			"chmod", "chown", "chgrp", "chattr", "setfacl", "usermod",
			"useradd", "userdel", "groupadd", "passwd",
			// Process disruption
			"kill", "pkill", "killall",
			// Power state
			"reboot", "shutdown", "poweroff", "halt", "init",
			// Network and firewall state
			"iptables", "nft", "ufw", "firewall-cmd", "ifdown", "ifup",
			"tc", "route",
			// Package management
			"apt", "apt-get", "yum", "dnf", "pacman", "zypper", "snap",
			"pip", "npm",
			// Editors and anything that opens a write session
			"vi", "vim", "nano", "crontab",
		},
		ReadOnlyPhrases: []string{
			"systemctl status", "systemctl show", "systemctl list-units",
			"systemctl list-unit-files", "systemctl is-active",
			"systemctl is-enabled", "systemctl is-failed",
			"service status",
			"docker ps", "docker logs", "docker inspect", "docker stats",
			"docker images", "docker version", "docker info",
			"git status", "git log", "git diff", "git show",
		},
		MutatingPhrases: []string{
			"systemctl start", "systemctl stop", "systemctl restart",
			"systemctl reload", "systemctl enable", "systemctl disable",
			"systemctl mask", "systemctl unmask", "systemctl daemon-reload",
			"service start", "service stop", "service restart",
			"docker rm", "docker rmi", "docker kill", "docker stop",
			"docker restart", "docker prune", "docker run", "docker exec",
			"ip link", "ip addr", "ip route",
			"swapoff", "swapon",
		},
	}
}
