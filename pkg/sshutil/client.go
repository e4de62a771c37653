package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/rexec/internal/errors"
	"github.com/rileyhilliard/rexec/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Target is everything needed to reach one host.
type Target struct {
	// Address can be:
	//   - An SSH config alias (e.g., "myserver")
	//   - A hostname or IP (e.g., "192.168.1.100")
	//   - user@hostname (e.g., "admin@192.168.1.100")
	//   - hostname:port (e.g., "192.168.1.100:2222")
	// A user or port written into Address wins over everything else.
	Address string

	Port         int
	User         string
	IdentityFile string

	UseAgent              bool
	UseSSHConfig          bool // resolve HostName/Port/User/IdentityFile from ~/.ssh/config
	StrictHostKeyChecking bool
	KnownHosts            string

	// Timeout bounds TCP connect plus handshake. Zero means no limit.
	Timeout time.Duration
}

// SSHDialer dials real SSH connections.
type SSHDialer struct {
	// ConfigPath overrides ~/.ssh/config, mainly for tests.
	ConfigPath string
	Log        logger.Logger
}

// NewDialer returns an SSHDialer that logs diagnostics to the default logger.
func NewDialer() *SSHDialer {
	return &SSHDialer{Log: logger.Default()}
}

// Dial establishes an authenticated SSH connection for t.
func (d *SSHDialer) Dial(ctx context.Context, t Target) (Session, error) {
	log := d.Log
	if log == nil {
		log = logger.Noop()
	}

	settings := resolveSettings(t, d.configPath(), log)
	log.Debug("dialing %s as %s (from %q)", settings.address(), settings.user, t.Address)

	config, err := buildSSHConfig(t, settings)
	if err != nil {
		return nil, err
	}

	address := settings.address()
	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.ConnectError(t.Address, err, suggestionForDialError(err))
	}

	if t.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.ConnectError(t.Address, hostKeyErr, hostKeyErr.Suggestion())
		}
		return nil, errors.ConnectError(t.Address, err, suggestionForHandshakeError(err, settings.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &sshSession{
		client:  ssh.NewClient(sshConn, chans, reqs),
		address: address,
	}, nil
}

func (d *SSHDialer) configPath() string {
	if d.ConfigPath != "" {
		return d.ConfigPath
	}
	return filepath.Join(homeDir(), ".ssh", "config")
}

// DialWithRetry dials t, retrying transport failures up to retries extra
// times with exponential backoff. retries == 0 is a single attempt.
func DialWithRetry(ctx context.Context, d Dialer, t Target, retries int, log logger.Logger) (Session, error) {
	if retries <= 0 {
		return d.Dial(ctx, t)
	}

	var sess Session
	attempt := 0
	operation := func() error {
		attempt++
		s, err := d.Dial(ctx, t)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		sess = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if log != nil {
			log.Warn("connect attempt %d failed, retrying in %s: %s", attempt, wait.Round(time.Millisecond), errors.Brief(err))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var perm *backoff.PermanentError
		if stderrors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return sess, nil
}

var (
	errNoAuthMethods = stderrors.New("no usable auth methods")
	errKnownHosts    = stderrors.New("known_hosts unavailable")
)

// isPermanent reports whether retrying err cannot help: missing keys, host
// key mismatches and rejected credentials.
func isPermanent(err error) bool {
	var hostKeyErr *HostKeyMismatchError
	if stderrors.As(err, &hostKeyErr) {
		return true
	}
	if stderrors.Is(err, errNoAuthMethods) || stderrors.Is(err, errKnownHosts) {
		return true
	}
	return strings.Contains(err.Error(), "unable to authenticate")
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFiles []string
	encryptedKeys []string // keys that exist but are encrypted
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// defaultUser is the login used when neither the target, ~/.ssh/config nor
// the address names one.
const defaultUser = "root"

// resolveSettings layers, lowest to highest precedence: run options,
// ~/.ssh/config for the alias, then user@ and :port written into the address.
func resolveSettings(t Target, configPath string, log logger.Logger) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: t.User,
	}
	if t.Port > 0 {
		settings.port = strconv.Itoa(t.Port)
	}
	if settings.user == "" {
		settings.user = defaultUser
	}

	host := t.Address
	explicitUser, explicitPort := "", ""
	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		explicitUser = host[:atIdx]
		host = host[atIdx+1:]
	}
	if h, p, ok := splitPort(host); ok {
		host, explicitPort = h, p
	}
	settings.hostname = host

	if t.UseSSHConfig {
		applySSHConfig(settings, host, configPath, log)
	}

	if explicitUser != "" {
		settings.user = explicitUser
	}
	if explicitPort != "" {
		settings.port = explicitPort
	}
	if t.IdentityFile != "" {
		settings.identityFiles = append(settings.identityFiles, t.IdentityFile)
	}
	return settings
}

// splitPort splits "host:port" when everything after the last colon is digits
// and the host part is not a bare IPv6 address.
func splitPort(host string) (string, string, bool) {
	if strings.HasPrefix(host, "[") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return host, "", false
		}
		return h, p, true
	}
	if strings.Count(host, ":") != 1 {
		return host, "", false
	}
	colonIdx := strings.LastIndex(host, ":")
	port := host[colonIdx+1:]
	if port == "" {
		return host, "", false
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return host, "", false
		}
	}
	return host[:colonIdx], port, true
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

func applySSHConfig(settings *sshSettings, alias, configPath string, log logger.Logger) {
	// kevinburke/ssh_config doesn't support Match, so only the content
	// before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		log.Debug("ignoring unreadable ssh config %s: %v", configPath, err)
		return
	}

	hostFound := false
	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		settings.port = port
		hostFound = true
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		settings.user = user
		hostFound = true
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		settings.identityFiles = append(settings.identityFiles, expandPath(identity))
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		matchWarningOnce.Do(func() {
			log.Warn("host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries)",
				alias, matchLine)
		})
	}
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
func buildSSHConfig(t Target, settings *sshSettings) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if t.UseAgent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	seen := make(map[string]bool)
	for _, keyPath := range settings.identityFiles {
		if seen[keyPath] {
			continue
		}
		seen[keyPath] = true

		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			continue
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Set identity_file, or load a key into your agent: ssh-add -l"
		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = encryptedKeySuggestion(settings.encryptedKeys)
		}
		return nil, &errors.Error{
			Code:       errors.ErrConnect,
			Message:    msg,
			Suggestion: suggestion,
			Host:       t.Address,
			Cause:      errNoAuthMethods,
		}
	}

	var hostKeyCallback ssh.HostKeyCallback
	if t.StrictHostKeyChecking {
		knownHostsPath := t.KnownHosts
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, errors.ConnectError(t.Address, fmt.Errorf("%w: %v", errKnownHosts, err),
				"Create it by connecting once with ssh, or turn off strict_host_key_checking")
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // strict checking is opt-in
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         t.Timeout,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across hosts. Returns nil if the agent has
// no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	if strings.Contains(errStr, "no such host") {
		return "The name doesn't resolve. Check the address or your SSH config alias."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return encryptedKeySuggestion(encryptedKeys)
		}
		return "Auth failed. Check the username and that your key is authorized on the host."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

func encryptedKeySuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the host was rebuilt, remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host)
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the 1-indexed line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
