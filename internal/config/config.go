package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gabrieldemian/p2p-chat/internal/app"
	"github.com/gabrieldemian/p2p-chat/internal/fabric"
)

// Config captures runtime configuration for the application.
type Config struct {
	App     app.Config
	Logging Logging
	File    string
	Flags   map[string]string
	Args    []string
}

type Logging struct {
	FilePath string
	Trace    bool
}

const (
	envPeer            = "P2P_CHAT_PEER"
	envListenAddress   = "P2P_CHAT_LISTEN_ADDRESS"
	envLogFile         = "P2P_CHAT_LOG_FILE"
	envTrace           = "P2P_CHAT_TRACE"
	envTick            = "P2P_CHAT_TICK"
	envChannelCapacity = "P2P_CHAT_CHANNEL_CAPACITY"
	envMDNS            = "P2P_CHAT_MDNS"
	envDHT             = "P2P_CHAT_DHT"
	envRendezvous      = "P2P_CHAT_RENDEZVOUS"
	envMetricsAddress  = "P2P_CHAT_METRICS_ADDRESS"
	envRoom            = "P2P_CHAT_ROOM"
	envConfig          = "P2P_CHAT_CONFIG"
)

const (
	DefaultListenAddress = "/ip4/0.0.0.0/tcp/0"
	DefaultTick          = 250 * time.Millisecond
	DefaultRendezvous    = "p2p-chat"
	DefaultLogFile       = "p2p-chat.log"
)

// RegisterFlags adds every option to fs with its built-in default. Values
// are resolved later by FromFlags, which only honours flags that were set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("peer", "", "multiaddr of a peer to dial once listening, e.g. /ip4/1.2.3.4/tcp/4001/p2p/<id>")
	fs.String("listen-address", DefaultListenAddress, "multiaddr to listen on")
	fs.String("log-file", DefaultLogFile, "path to the log file")
	fs.Bool("trace", false, "enable verbose JSON trace logging")
	fs.Duration("tick", DefaultTick, "how often the UI drains network events")
	fs.Int("channel-capacity", fabric.DefaultCapacity,
		fmt.Sprintf("capacity of each actor channel (%d-%d)", fabric.MinCapacity, fabric.MaxCapacity))
	fs.Bool("mdns", true, "discover peers on the local network with mDNS")
	fs.Bool("dht", false, "run a Kademlia DHT for peer routing")
	fs.String("rendezvous", DefaultRendezvous, "mDNS service name shared by peers")
	fs.String("metrics-address", "", "serve Prometheus metrics on this host:port")
	fs.String("room", "", "preselect the room best matching this name or topic")
	fs.String("config", "", "YAML file supplying defaults")
}

// LoadArgs parses args with a fresh flag set. Tests use it with explicit
// args and environment.
func LoadArgs(args []string, environ []string) (Config, error) {
	fs := pflag.NewFlagSet("p2p-chat", pflag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(fs, environ, args)
}

// FromFlags resolves every option from a parsed flag set. Precedence is
// flag, then environment, then config file, then the built-in default.
func FromFlags(fs *pflag.FlagSet, environ []string, args []string) (Config, error) {
	env := parseEnv(environ)
	r := resolver{fs: fs, env: env}

	path := r.str("config", envConfig, "")
	if path != "" {
		file, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		r.file = file
	}

	tick, err := r.duration("tick", envTick, r.file.Tick)
	if err != nil {
		return Config{}, err
	}
	capacity := r.integer("channel-capacity", envChannelCapacity, r.file.ChannelCapacity)

	cfg := Config{
		App: app.Config{
			Peer:            r.str("peer", envPeer, r.file.Peer),
			ListenAddress:   r.str("listen-address", envListenAddress, r.file.ListenAddress),
			Tick:            tick,
			ChannelCapacity: capacity,
			MDNS:            r.boolean("mdns", envMDNS, r.file.MDNS),
			DHT:             r.boolean("dht", envDHT, r.file.DHT),
			Rendezvous:      r.str("rendezvous", envRendezvous, r.file.Rendezvous),
			MetricsAddress:  r.str("metrics-address", envMetricsAddress, r.file.MetricsAddress),
			Room:            r.str("room", envRoom, r.file.Room),
		},
		Logging: Logging{
			FilePath: r.str("log-file", envLogFile, r.file.LogFile),
			Trace:    r.boolean("trace", envTrace, r.file.Trace),
		},
		File: path,
		Args: append([]string(nil), args...),
	}
	cfg.Flags = map[string]string{
		"peer":            cfg.App.Peer,
		"listenAddress":   cfg.App.ListenAddress,
		"tick":            cfg.App.Tick.String(),
		"channelCapacity": strconv.Itoa(cfg.App.ChannelCapacity),
		"mdns":            strconv.FormatBool(cfg.App.MDNS),
		"dht":             strconv.FormatBool(cfg.App.DHT),
		"rendezvous":      cfg.App.Rendezvous,
		"metricsAddress":  cfg.App.MetricsAddress,
		"room":            cfg.App.Room,
		"config":          path,
	}
	return cfg, nil
}

// fileConfig mirrors the flags. Pointers distinguish an explicit false from
// an absent key.
type fileConfig struct {
	Peer            string `yaml:"peer"`
	ListenAddress   string `yaml:"listen_address"`
	LogFile         string `yaml:"log_file"`
	Trace           *bool  `yaml:"trace"`
	Tick            string `yaml:"tick"`
	ChannelCapacity *int   `yaml:"channel_capacity"`
	MDNS            *bool  `yaml:"mdns"`
	DHT             *bool  `yaml:"dht"`
	Rendezvous      string `yaml:"rendezvous"`
	MetricsAddress  string `yaml:"metrics_address"`
	Room            string `yaml:"room"`
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

type resolver struct {
	fs   *pflag.FlagSet
	env  map[string]string
	file fileConfig
}

func (r resolver) str(flag, key, fromFile string) string {
	if r.fs.Changed(flag) {
		v, _ := r.fs.GetString(flag)
		return v
	}
	if fromFile == "" {
		fromFile, _ = r.fs.GetString(flag)
	}
	return envOrDefault(r.env, key, fromFile)
}

func (r resolver) boolean(flag, key string, fromFile *bool) bool {
	if r.fs.Changed(flag) {
		v, _ := r.fs.GetBool(flag)
		return v
	}
	fallback, _ := r.fs.GetBool(flag)
	if fromFile != nil {
		fallback = *fromFile
	}
	return envOrBool(r.env, key, fallback)
}

func (r resolver) integer(flag, key string, fromFile *int) int {
	if r.fs.Changed(flag) {
		v, _ := r.fs.GetInt(flag)
		return v
	}
	fallback, _ := r.fs.GetInt(flag)
	if fromFile != nil {
		fallback = *fromFile
	}
	return envOrInt(r.env, key, fallback)
}

func (r resolver) duration(flag, key, fromFile string) (time.Duration, error) {
	if r.fs.Changed(flag) {
		return r.fs.GetDuration(flag)
	}
	fallback, _ := r.fs.GetDuration(flag)
	if strings.TrimSpace(fromFile) != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(fromFile))
		if err != nil {
			return 0, fmt.Errorf("config file %s: %w", flag, err)
		}
		fallback = parsed
	}
	return envOrDuration(r.env, key, fallback), nil
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok {
		return v
	}
	return fallback
}

func envOrInt(env map[string]string, key string, fallback int) int {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(env map[string]string, key string, fallback bool) bool {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDuration(env map[string]string, key string, fallback time.Duration) time.Duration {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate checks addresses and ranges before anything is started.
func Validate(cfg Config) error {
	if _, err := ma.NewMultiaddr(cfg.App.ListenAddress); err != nil {
		return fmt.Errorf("listen-address %q: %w", cfg.App.ListenAddress, err)
	}
	if cfg.App.Peer != "" {
		addr, err := ma.NewMultiaddr(cfg.App.Peer)
		if err != nil {
			return fmt.Errorf("peer %q: %w", cfg.App.Peer, err)
		}
		if _, err := addr.ValueForProtocol(ma.P_P2P); err != nil {
			return fmt.Errorf("peer %q must end in /p2p/<peer id>", cfg.App.Peer)
		}
	}
	if cfg.App.Tick <= 0 {
		return fmt.Errorf("tick must be > 0 (got %s)", cfg.App.Tick)
	}
	if c := cfg.App.ChannelCapacity; c < fabric.MinCapacity || c > fabric.MaxCapacity {
		return fmt.Errorf("channel-capacity must be between %d and %d (got %d)",
			fabric.MinCapacity, fabric.MaxCapacity, c)
	}
	return nil
}
