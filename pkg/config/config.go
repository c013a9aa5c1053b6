package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Provider ProviderConfig `mapstructure:"provider"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Signing  SigningConfig  `mapstructure:"signing"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type WalletConfig struct {
	RpcUrl      string `mapstructure:"rpc_url"`
	KeystoreDir string `mapstructure:"keystore_dir"` // 加密私钥文件目录
	ChainID     int64  `mapstructure:"chain_id"`
}

// ProviderConfig Web3 Provider 管道配置
type ProviderConfig struct {
	ChainID          string `mapstructure:"chain_id"`          // 十六进制, e.g. "0x1"
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
	AllowChainStubs  bool   `mapstructure:"allow_chain_stubs"` // wallet_switch/addEthereumChain 是否允许空操作成功
}

// GatewayConfig 确认弹窗 WebSocket 网关配置
type GatewayConfig struct {
	WsPort string `mapstructure:"ws_port"`
}

// SigningConfig 签名服务客户端配置
type SigningConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "wallet_user")
	viper.SetDefault("db.password", "wallet_password")
	viper.SetDefault("db.name", "wallet_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("wallet.keystore_dir", ".keystore")
	viper.SetDefault("wallet.chain_id", 1)

	viper.SetDefault("provider.chain_id", "0x1")
	viper.SetDefault("provider.request_timeout_ms", 30000)
	viper.SetDefault("provider.allow_chain_stubs", true)

	viper.SetDefault("gateway.ws_port", "8090")

	viper.SetDefault("signing.base_url", "http://localhost:8080")
}
