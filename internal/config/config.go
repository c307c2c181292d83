package config

import (
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent 探测请求使用的 User-Agent
const DefaultUserAgent = "API-Ping-Monitor/1.0"

// AppConfig 应用配置
type AppConfig struct {
	Server       ServerConfig       `yaml:"Server" mapstructure:"Server"`
	Database     DatabaseConfig     `yaml:"Database" mapstructure:"Database"`
	Log          LogConfig          `yaml:"Log" mapstructure:"Log"`
	Scheduler    SchedulerConfig    `yaml:"Scheduler" mapstructure:"Scheduler"`
	Prober       ProberConfig       `yaml:"Prober" mapstructure:"Prober"`
	Notification NotificationConfig `yaml:"Notification" mapstructure:"Notification"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"Addr" mapstructure:"Addr"` // 监听地址，如 :8080
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type  string `yaml:"Type" mapstructure:"Type"`   // sqlite 或 postgres
	DSN   string `yaml:"DSN" mapstructure:"DSN"`     // 连接串，sqlite 为文件路径
	Debug bool   `yaml:"Debug" mapstructure:"Debug"` // 是否打印 SQL
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"Level" mapstructure:"Level"`
	File       string `yaml:"File" mapstructure:"File"`             // 为空时输出到标准输出
	MaxSize    int    `yaml:"MaxSize" mapstructure:"MaxSize"`       // MB
	MaxBackups int    `yaml:"MaxBackups" mapstructure:"MaxBackups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"MaxAge" mapstructure:"MaxAge"`         // 天数
	Compress   bool   `yaml:"Compress" mapstructure:"Compress"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	Enabled      bool   `yaml:"Enabled" mapstructure:"Enabled"`           // 启动服务时是否自动开始调度
	TickSpec     string `yaml:"TickSpec" mapstructure:"TickSpec"`         // 扫描到期端点的 cron 表达式
	CleanupSpec  string `yaml:"CleanupSpec" mapstructure:"CleanupSpec"`   // 清理告警状态的 cron 表达式
	BatchSize    int    `yaml:"BatchSize" mapstructure:"BatchSize"`       // 每批并发探测的端点数
	BatchDelayMs int    `yaml:"BatchDelayMs" mapstructure:"BatchDelayMs"` // 批次之间的间隔（毫秒）
}

// ProberConfig 探测器配置
type ProberConfig struct {
	UserAgent          string `yaml:"UserAgent" mapstructure:"UserAgent"`
	MaxRedirects       int    `yaml:"MaxRedirects" mapstructure:"MaxRedirects"`
	InsecureSkipVerify bool   `yaml:"InsecureSkipVerify" mapstructure:"InsecureSkipVerify"` // 是否跳过证书校验
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	FailureCooldownMinutes      int        `yaml:"FailureCooldownMinutes" mapstructure:"FailureCooldownMinutes"`
	SlowResponseCooldownMinutes int        `yaml:"SlowResponseCooldownMinutes" mapstructure:"SlowResponseCooldownMinutes"`
	DowntimeCooldownMinutes     int        `yaml:"DowntimeCooldownMinutes" mapstructure:"DowntimeCooldownMinutes"`
	StateTTLHours               int        `yaml:"StateTTLHours" mapstructure:"StateTTLHours"`   // 告警状态闲置多久后清理
	HTTPTimeout                 int        `yaml:"HTTPTimeout" mapstructure:"HTTPTimeout"`       // Webhook 请求超时（秒）
	MaxRetries                  int        `yaml:"MaxRetries" mapstructure:"MaxRetries"`         // Webhook 投递重试次数
	SMTP                        SMTPConfig `yaml:"SMTP" mapstructure:"SMTP"`
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `yaml:"Host" mapstructure:"Host"`
	Port     int    `yaml:"Port" mapstructure:"Port"`
	Username string `yaml:"Username" mapstructure:"Username"`
	Password string `yaml:"Password" mapstructure:"Password"`
	From     string `yaml:"From" mapstructure:"From"`
}

// Default 默认配置
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "data/apiping.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			TickSpec:     "@every 30s",
			CleanupSpec:  "@every 1h",
			BatchSize:    5,
			BatchDelayMs: 500,
		},
		Prober: ProberConfig{
			UserAgent:          DefaultUserAgent,
			MaxRedirects:       5,
			InsecureSkipVerify: true,
		},
		Notification: NotificationConfig{
			FailureCooldownMinutes:      15,
			SlowResponseCooldownMinutes: 30,
			DowntimeCooldownMinutes:     60,
			StateTTLHours:               24,
			HTTPTimeout:                 10,
			MaxRetries:                  3,
			SMTP: SMTPConfig{
				Port: 587,
				From: "alerts@apiping.local",
			},
		},
	}
}

// Load 读取配置：默认值 < 配置文件 < 环境变量（APIPING_ 前缀，如 APIPING_SERVER_ADDR）
func Load(fs afero.Fs, path string) (*AppConfig, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v, Default())

	v.SetEnvPrefix("APIPING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapPrefix(err, "读取配置文件失败", 0)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapPrefix(err, "解析配置失败", 0)
	}
	return &cfg, nil
}

// WriteDefault 将默认配置写入文件
func WriteDefault(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.WrapPrefix(err, "序列化默认配置失败", 0)
	}
	if exists, _ := afero.Exists(fs, path); exists {
		return errors.Errorf("配置文件已存在: %s", path)
	}
	return afero.WriteFile(fs, path, data, 0644)
}

func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("Server.Addr", d.Server.Addr)

	v.SetDefault("Database.Type", d.Database.Type)
	v.SetDefault("Database.DSN", d.Database.DSN)
	v.SetDefault("Database.Debug", d.Database.Debug)

	v.SetDefault("Log.Level", d.Log.Level)
	v.SetDefault("Log.File", d.Log.File)
	v.SetDefault("Log.MaxSize", d.Log.MaxSize)
	v.SetDefault("Log.MaxBackups", d.Log.MaxBackups)
	v.SetDefault("Log.MaxAge", d.Log.MaxAge)
	v.SetDefault("Log.Compress", d.Log.Compress)

	v.SetDefault("Scheduler.Enabled", d.Scheduler.Enabled)
	v.SetDefault("Scheduler.TickSpec", d.Scheduler.TickSpec)
	v.SetDefault("Scheduler.CleanupSpec", d.Scheduler.CleanupSpec)
	v.SetDefault("Scheduler.BatchSize", d.Scheduler.BatchSize)
	v.SetDefault("Scheduler.BatchDelayMs", d.Scheduler.BatchDelayMs)

	v.SetDefault("Prober.UserAgent", d.Prober.UserAgent)
	v.SetDefault("Prober.MaxRedirects", d.Prober.MaxRedirects)
	v.SetDefault("Prober.InsecureSkipVerify", d.Prober.InsecureSkipVerify)

	v.SetDefault("Notification.FailureCooldownMinutes", d.Notification.FailureCooldownMinutes)
	v.SetDefault("Notification.SlowResponseCooldownMinutes", d.Notification.SlowResponseCooldownMinutes)
	v.SetDefault("Notification.DowntimeCooldownMinutes", d.Notification.DowntimeCooldownMinutes)
	v.SetDefault("Notification.StateTTLHours", d.Notification.StateTTLHours)
	v.SetDefault("Notification.HTTPTimeout", d.Notification.HTTPTimeout)
	v.SetDefault("Notification.MaxRetries", d.Notification.MaxRetries)
	v.SetDefault("Notification.SMTP.Host", d.Notification.SMTP.Host)
	v.SetDefault("Notification.SMTP.Port", d.Notification.SMTP.Port)
	v.SetDefault("Notification.SMTP.Username", d.Notification.SMTP.Username)
	v.SetDefault("Notification.SMTP.Password", d.Notification.SMTP.Password)
	v.SetDefault("Notification.SMTP.From", d.Notification.SMTP.From)
}
