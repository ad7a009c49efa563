package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"identity-verify/face"
	"identity-verify/logging"
	goredis "identity-verify/redis"
	"identity-verify/session"
)

// Config is the top-level configuration file shape, loaded once at
// startup from the path given by --config.
type Config struct {
	ServerConfig ServerConfig `json:"server_config"`
	LogLevel     string       `json:"log_level"`

	FaceModelDir string `json:"face_model_dir"`
	OcrDPI       int    `json:"ocr_dpi"`

	StorageType         string                        `json:"storage_type"`
	RedisConfig         goredis.RedisConfig           `json:"redis_config,omitempty"`
	RedisSentinelConfig goredis.RedisSentinelConfig   `json:"redis_sentinel_config,omitempty"`
	SessionNamespace    string                        `json:"session_namespace"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(config.LogLevel)
	log := logging.GetLogger()
	log.Info("using config", "path", *configPath)

	store, err := createSessionStore(&config, log)
	if err != nil {
		log.Error("failed to instantiate session store", "error", err)
		os.Exit(1)
	}

	detector, err := face.NewGoFaceDetector(config.FaceModelDir)
	if err != nil {
		log.Error("failed to load face models", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	log.Info("hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	serverState := NewServerState(store, detector, config.OcrDPI)
	server, err := NewServer(serverState, config.ServerConfig)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := server.ListenAndServe(); err != nil {
		log.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func createSessionStore(config *Config, log *slog.Logger) (session.Store, error) {
	switch config.StorageType {
	case "redis":
		log.Info("using redis session store")
		client, err := goredis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(client, config.SessionNamespace), nil
	case "redis_sentinel":
		log.Info("using redis sentinel session store")
		client, err := goredis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(client, config.SessionNamespace), nil
	case "memory", "":
		log.Info("using in-memory session store")
		return session.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
	}
}
