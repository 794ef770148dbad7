package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Proctor ProctorConfig
	Audio   AudioConfig
	Media   MediaConfig
	Storage StorageConfig
	Redis   RedisConfig
	Milvus  MilvusConfig
	LLM     LLMConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type ProctorConfig struct {
	CheckFocus     bool
	FocusThreshold float64
	MinFaceSize    int
	MatchThreshold float64
	ModelsDir      string
}

type AudioConfig struct {
	SampleRate    int
	ChunkSize     int
	PeakThreshold int
	Device        string
}

type MediaConfig struct {
	Enabled     bool
	FPS         int
	Width       int
	Height      int
	FFmpegPath  string
	FFprobePath string
	DataDir     string
	ClipLeadSec float64
	ClipTailSec float64
}

type StorageConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/examproctor")

	viper.SetEnvPrefix("PROCTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	// Thresholds are empirical, tuned against webcam footage.
	viper.SetDefault("proctor.checkFocus", true)
	viper.SetDefault("proctor.focusThreshold", 100.0)
	viper.SetDefault("proctor.minFaceSize", 30)
	viper.SetDefault("proctor.matchThreshold", 0.6)
	viper.SetDefault("proctor.modelsDir", "./models")

	viper.SetDefault("audio.sampleRate", 44100)
	viper.SetDefault("audio.chunkSize", 1024)
	viper.SetDefault("audio.peakThreshold", 1000)
	viper.SetDefault("audio.device", "default")

	viper.SetDefault("media.enabled", true)
	viper.SetDefault("media.fps", 20)
	viper.SetDefault("media.width", 640)
	viper.SetDefault("media.height", 480)
	viper.SetDefault("media.ffmpegPath", "ffmpeg")
	viper.SetDefault("media.ffprobePath", "ffprobe")
	viper.SetDefault("media.dataDir", "./captured")
	viper.SetDefault("media.clipLeadSec", 10.0)
	viper.SetDefault("media.clipTailSec", 20.0)

	viper.SetDefault("storage.path", "./data/proctor.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "face_gallery")
	viper.SetDefault("milvus.vectorDim", 128)

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 512)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
