package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/solana/unicorn"
	"github.com/soloking1412/Unicorn-Launchpad/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. UNICORN_RPC_ENDPOINT.
const EnvPrefix = "UNICORN_"

// Config stores global configuration
type Config struct {
	// Logging level
	LogLevel string

	// "text" or "json"
	LogFormat string

	RPC      RPC
	Program  Program
	Curve    Curve
	API      API
	Database Database
	RabbitMQ RabbitMQ
	Worker   Worker
	Keystore Keystore
}

type RPC struct {
	Endpoint          string
	WsEndpoint        string
	Commitment        string
	RequestsPerSecond int
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	FetchMaxElapsed   time.Duration
	SkipPreflight     bool
}

type Program struct {
	// Base58 address of the deployed launchpad program
	ID string

	// Smallest units per human unit
	UnitScale uint64

	VotingWindow time.Duration
}

type Curve struct {
	BasePrice uint64
	Slope     uint64
}

type API struct {
	ListenAddress     string
	AllowedOrigins    []string
	RequestsPerSecond float64
	Burst             int
}

type Worker struct {
	// Cron spec of the snapshot job
	SnapshotSpec string
	Concurrency  int

	// Upper bound of a single snapshot pass
	PassTimeout time.Duration
}

type Keystore struct {
	Dir string

	// Unlocks keystore signers when --password is not given
	Password string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")

	v.SetDefault("RPC.Endpoint", rpc.DevNet_RPC)
	v.SetDefault("RPC.WsEndpoint", rpc.DevNet_WS)
	v.SetDefault("RPC.Commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("RPC.RequestsPerSecond", 10)
	v.SetDefault("RPC.ConfirmTimeout", "60s")
	v.SetDefault("RPC.PollInterval", "500ms")
	v.SetDefault("RPC.FetchMaxElapsed", "10s")
	v.SetDefault("RPC.SkipPreflight", false)

	v.SetDefault("Program.ID", "E95C9BgCrrt6Sy8MUbBPTVEEQJSR5Hyau2gAiuAdhb6Y")
	v.SetDefault("Program.UnitScale", unicorn.DefaultUnitScale)
	v.SetDefault("Program.VotingWindow", unicorn.DefaultVotingWindow.String())

	// Set Curve.BasePrice to 1 for programs whose price starts at one smallest unit
	v.SetDefault("Curve.BasePrice", utils.DefaultBasePrice)
	v.SetDefault("Curve.Slope", utils.DefaultSlope)

	v.SetDefault("API.ListenAddress", ":8080")
	v.SetDefault("API.AllowedOrigins", []string{"*"})
	v.SetDefault("API.RequestsPerSecond", 20)
	v.SetDefault("API.Burst", 40)

	v.SetDefault("Worker.SnapshotSpec", "@every 5m")
	v.SetDefault("Worker.Concurrency", 4)
	v.SetDefault("Worker.PassTimeout", "4m")

	v.SetDefault("Keystore.Dir", filepath.Join(".", "keystore"))

	setDatabaseDefaults(v)
	setRabbitMQDefaults(v)
}

// bindEnv visits every field and registers its upper snake case ENV name.
func bindEnv(v *viper.Viper, path []string, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		key := strings.Join(path, ".")
		env := EnvPrefix + strcase.ToScreamingSnake(strings.Join(path, "_"))
		if err := v.BindEnv(key, env); err != nil {
			panic(err)
		}
		return
	}
	for i := 0; i < val.NumField(); i++ {
		newPath := make([]string, len(path), len(path)+1)
		copy(newPath, path)
		newPath = append(newPath, val.Type().Field(i).Name)
		bindEnv(v, newPath, val.Field(i))
	}
}

func Default() *Config {
	config, err := Load("")
	if err != nil {
		panic(err)
	}
	return config
}

// Load configuration from file and env. An empty filename uses defaults and
// env only. The file format follows its extension, JSON when unknown.
func Load(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v, []string{}, reflect.ValueOf(Config{}))

	if filename != "" {
		/* #nosec */
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		default:
			v.SetConfigType("json")
		}
		if err := v.ReadConfig(bytes.NewBuffer(content)); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	config := new(Config)
	err := v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	switch rpc.CommitmentType(c.RPC.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("rpc commitment %q is not processed, confirmed or finalized", c.RPC.Commitment)
	}
	if c.Program.UnitScale == 0 {
		return fmt.Errorf("program unit scale must be positive")
	}
	return nil
}

func (c *Config) ProgramID() (solana.PublicKey, error) {
	id, err := solana.PublicKeyFromBase58(c.Program.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program id %q: %w", c.Program.ID, err)
	}
	return id, nil
}

// ClientConfig is the launchpad client configuration for this deployment.
func (c *Config) ClientConfig() (unicorn.Config, error) {
	id, err := c.ProgramID()
	if err != nil {
		return unicorn.Config{}, err
	}
	return unicorn.Config{
		ProgramID:    id,
		UnitScale:    c.Program.UnitScale,
		VotingWindow: c.Program.VotingWindow,
		Curve:        utils.LinearCurve{BasePrice: c.Curve.BasePrice, Slope: c.Curve.Slope},
	}, nil
}

func (c *Config) RPCConfig() unicorn.RPCConfig {
	return unicorn.RPCConfig{
		Endpoint:          c.RPC.Endpoint,
		Commitment:        rpc.CommitmentType(c.RPC.Commitment),
		RequestsPerSecond: c.RPC.RequestsPerSecond,
		ConfirmTimeout:    c.RPC.ConfirmTimeout,
		PollInterval:      c.RPC.PollInterval,
		FetchMaxElapsed:   c.RPC.FetchMaxElapsed,
		SkipPreflight:     c.RPC.SkipPreflight,
	}
}
