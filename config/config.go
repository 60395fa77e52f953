package config

import (
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env               string           `mapstructure:"env"`
	LogLevel          string           `mapstructure:"log_level"`
	LogType           string           `mapstructure:"log_type"`
	ServiceName       string           `mapstructure:"service_name"`
	Port              string           `mapstructure:"port"`
	Version           string           `mapstructure:"version"`
	WorkerSettings    *WorkerConfig    `mapstructure:"worker"`
	CacheSettings     *CacheConfig     `mapstructure:"cache"`
	DbSettings        *DatabaseConfig  `mapstructure:"database"`
	KafkaSettings     *KafkaConfig     `mapstructure:"kafka"`
	S3Settings        *S3Config        `mapstructure:"s3"`
	BrowserSettings   *BrowserConfig   `mapstructure:"browser"`
	ProxySettings     *ProxyConfig     `mapstructure:"proxy"`
	ExtractorSettings *ExtractorConfig `mapstructure:"extractor"`
}

type WorkerConfig struct {
	MaxWorkers  int           `mapstructure:"max_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	RestartWait time.Duration `mapstructure:"restart_wait"`
}

type CacheConfig struct {
	// Driver is one of "memcached", "redis" or "local".
	Driver   string        `mapstructure:"driver"`
	Servers  string        `mapstructure:"servers"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Producer *ProducerConfig `mapstructure:"producer"`
	Consumer *ConsumerConfig `mapstructure:"consumer"`
}

type ProducerConfig struct {
	Addr           string        `mapstructure:"addr"`
	WriteTopicName string        `mapstructure:"write_topic_name"`
	TaskTopicName  string        `mapstructure:"task_topic_name"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequiredAsks   int           `mapstructure:"required_acks"`
	Async          bool          `mapstructure:"async"`
}

type ConsumerConfig struct {
	ReadTopicName    string        `mapstructure:"read_topic_name"`
	Brokers          string        `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	MaxWait          time.Duration `mapstructure:"max_wait"`
	ReadBatchTimeout time.Duration `mapstructure:"read_batch_timeout"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	AwsAccessKey    string `mapstructure:"aws_access_key"`
	AwsSecretKey    string `mapstructure:"aws_secret_key"`
	AwsBaseEndpoint string `mapstructure:"aws_base_endpoint"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

type BrowserConfig struct {
	ExecPath          string        `mapstructure:"exec_path"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Servers  string `mapstructure:"servers"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ExtractorConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RobotsCacheTTL time.Duration `mapstructure:"robots_cache_ttl"`
	MaxImages      int           `mapstructure:"max_images"`
}

func MustLoad() *Config {
	viper.AddConfigPath(path.Join("."))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("error unmarshalling viper config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("worker.max_workers", 4)
	viper.SetDefault("worker.queue_size", 100)
	viper.SetDefault("worker.job_timeout", 3*time.Minute)
	viper.SetDefault("worker.lease_ttl", 5*time.Minute)
	viper.SetDefault("worker.restart_wait", 3*time.Minute)
	viper.SetDefault("cache.driver", "memcached")
	viper.SetDefault("kafka.producer.max_attempts", 3)
	viper.SetDefault("kafka.producer.batch_size", 100)
	viper.SetDefault("kafka.producer.batch_timeout", time.Second)
	viper.SetDefault("kafka.producer.write_timeout", 10*time.Second)
	viper.SetDefault("kafka.producer.required_acks", 1)
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.navigation_timeout", 45*time.Second)
	viper.SetDefault("extractor.request_timeout", 15*time.Second)
	viper.SetDefault("extractor.robots_cache_ttl", time.Hour)
	viper.SetDefault("extractor.max_images", 50)
	// Proxy credentials usually come from the environment.
	_ = viper.BindEnv("proxy.username", "PROXY_USERNAME")
	_ = viper.BindEnv("proxy.password", "PROXY_PASSWORD")
}
