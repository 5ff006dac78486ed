package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"github.com/DRSN-tech/embedding-pipeline/pkg/workerpool"
	"github.com/jimlawless/whereami"
)

// FallbackSinkID — идентификатор хранилища, если он не задан ни в запросе, ни в окружении.
const FallbackSinkID = "default_index_name"

type Config struct {
	Pipeline   *PipelineCfg
	Validation *ValidationCfg
	Http       *HTTPConfig
	Grpc       *GRPCConfig
	Ml         *MLServiceCfg
	Qdrant     *QdrantCfg
	Minio      *MinIOCfg // nil — архив исходников отключён
	Redis      *RedisCfg // nil — кэш эмбеддингов отключён
	Kafka      *KafkaCfg // nil — события о запусках не публикуются
	Db         *PGDBCfg  // nil — журнал запусков не ведётся
}

// PipelineCfg — значения по умолчанию для запуска пайплайна. Любое из них может быть переопределено в запросе.
type PipelineCfg struct {
	DefaultSinkID     string
	BatchSize         int
	ProduceTimeout    time.Duration // таймаут векторизации одного изображения
	DeliverTimeout    time.Duration // таймаут отправки одного батча
	ProduceMaxRetries int
	DeliverMaxRetries int
	ProduceWorkers    int
	DeliverWorkers    int
	RetryBackoff      time.Duration // базовая задержка между повторами после таймаута
	MaxRetryBackoff   time.Duration
	DeliverRatePerSec float64 // 0 — без ограничения
}

type ValidationCfg struct {
	AllowedTypes  []string
	MaxFileSize   int64
	MaxImageCount int
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type MLServiceCfg struct {
	Addr string
}

type QdrantCfg struct {
	Port       int
	Host       string
	ApiKey     string
	UseTLS     bool
	VectorSize uint64
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название бакета для исходных изображений
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	UploadImagesLimit int // Лимит на число одновременных загрузок в S3
}

type RedisCfg struct {
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	EmbeddingTTL time.Duration
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	pipeline, err := loadPipelineCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	validation, err := loadValidationCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Pipeline:   pipeline,
		Validation: validation,
		Http:       http,
		Grpc:       loadGRPCConfig(),
		Ml:         loadMLServiceCfg(),
		Qdrant:     qdrant,
		Minio:      minio,
		Redis:      redis,
		Kafka:      kafka,
		Db:         db,
	}, nil
}

// DefaultPipelineCfg возвращает параметры пайплайна по умолчанию.
func DefaultPipelineCfg() *PipelineCfg {
	return &PipelineCfg{
		DefaultSinkID:     FallbackSinkID,
		BatchSize:         100,
		ProduceTimeout:    60 * time.Second,
		DeliverTimeout:    60 * time.Second,
		ProduceMaxRetries: 3,
		DeliverMaxRetries: 5,
		ProduceWorkers:    workerpool.DefaultSize(),
		DeliverWorkers:    workerpool.DefaultSize(),
		RetryBackoff:      0,
		MaxRetryBackoff:   30 * time.Second,
	}
}

func loadPipelineCfg(log logger.Logger) (*PipelineCfg, error) {
	def := DefaultPipelineCfg()

	batchSize, err := parseIntEnv("PIPELINE_BATCH_SIZE", def.BatchSize)
	if err != nil || batchSize < 1 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid PIPELINE_BATCH_SIZE")
		return nil, e.Wrap("PIPELINE_BATCH_SIZE", e.ErrIncorrectEnvVariable)
	}

	produceTimeout, err := parseDurationEnv("PIPELINE_PRODUCE_TIMEOUT", def.ProduceTimeout)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_PRODUCE_TIMEOUT")
		return nil, err
	}

	deliverTimeout, err := parseDurationEnv("PIPELINE_DELIVER_TIMEOUT", def.DeliverTimeout)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_DELIVER_TIMEOUT")
		return nil, err
	}

	produceRetries, err := parseIntEnv("PIPELINE_PRODUCE_MAX_RETRIES", def.ProduceMaxRetries)
	if err != nil {
		return nil, e.Wrap("PIPELINE_PRODUCE_MAX_RETRIES", err)
	}

	deliverRetries, err := parseIntEnv("PIPELINE_DELIVER_MAX_RETRIES", def.DeliverMaxRetries)
	if err != nil {
		return nil, e.Wrap("PIPELINE_DELIVER_MAX_RETRIES", err)
	}

	produceWorkers, err := parseIntEnv("PIPELINE_PRODUCE_WORKERS", def.ProduceWorkers)
	if err != nil {
		return nil, e.Wrap("PIPELINE_PRODUCE_WORKERS", err)
	}

	deliverWorkers, err := parseIntEnv("PIPELINE_DELIVER_WORKERS", def.DeliverWorkers)
	if err != nil {
		return nil, e.Wrap("PIPELINE_DELIVER_WORKERS", err)
	}

	backoff, err := parseDurationEnv("PIPELINE_RETRY_BACKOFF", def.RetryBackoff)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_RETRY_BACKOFF")
		return nil, err
	}

	rate, err := strconv.ParseFloat(getEnvOrDefault("PIPELINE_DELIVER_RATE", "0"), 64)
	if err != nil || rate < 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid PIPELINE_DELIVER_RATE")
		return nil, e.Wrap("PIPELINE_DELIVER_RATE", e.ErrIncorrectEnvVariable)
	}

	return &PipelineCfg{
		DefaultSinkID:     getEnvOrDefault("PIPELINE_SINK_ID", FallbackSinkID),
		BatchSize:         batchSize,
		ProduceTimeout:    produceTimeout,
		DeliverTimeout:    deliverTimeout,
		ProduceMaxRetries: produceRetries,
		DeliverMaxRetries: deliverRetries,
		ProduceWorkers:    produceWorkers,
		DeliverWorkers:    deliverWorkers,
		RetryBackoff:      backoff,
		MaxRetryBackoff:   def.MaxRetryBackoff,
		DeliverRatePerSec: rate,
	}, nil
}

func loadValidationCfg(log logger.Logger) (*ValidationCfg, error) {
	const (
		defaultAllowedTypes  = "image/jpeg,image/png,image/gif"
		defaultMaxFileSize   = 5 * 1024 * 1024
		defaultMaxImageCount = 100
	)

	var allowed []string
	for _, t := range strings.Split(getEnvOrDefault("ALLOWED_FILE_TYPES", defaultAllowedTypes), ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed = append(allowed, t)
		}
	}

	maxSize, err := strconv.ParseInt(getEnvOrDefault("MAX_FILE_SIZE", strconv.Itoa(defaultMaxFileSize)), 10, 64)
	if err != nil || maxSize <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid MAX_FILE_SIZE")
		return nil, e.Wrap("MAX_FILE_SIZE", e.ErrIncorrectEnvVariable)
	}

	maxCount, err := parseIntEnv("MAX_IMAGE_COUNT", defaultMaxImageCount)
	if err != nil {
		return nil, e.Wrap("MAX_IMAGE_COUNT", err)
	}

	return &ValidationCfg{
		AllowedTypes:  allowed,
		MaxFileSize:   maxSize,
		MaxImageCount: maxCount,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 30 * time.Second
		defaultWriteTimeout = 10 * time.Minute
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	// Запрос держится открытым до конца запуска пайплайна, поэтому таймаут записи большой
	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadMLServiceCfg() *MLServiceCfg {
	const (
		defaultHost = "ml-service"
		defaultPort = "50051"
	)

	host := getEnvOrDefault("ML_HOST", defaultHost)
	port := getEnvOrDefault("ML_PORT", defaultPort)

	return &MLServiceCfg{
		Addr: host + ":" + port,
	}
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantHost     = "localhost"
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "768"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:       getEnvOrDefault("QDRANT_HOST", defaultQdrantHost),
		Port:       port,
		ApiKey:     getEnv("QDRANT__SERVICE__API_KEY"),
		UseTLS:     useTLS,
		VectorSize: vectorSize,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL       = false
		defaultBucket       = "pipeline-images"
		defaultUploadsLimit = 10
	)

	endpoint := getEnv("MINIO_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	limit, err := parseIntEnv("MINIO_UPLOAD_LIMIT", defaultUploadsLimit)
	if err != nil {
		return nil, e.Wrap("MINIO_UPLOAD_LIMIT", err)
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: limit,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultEmbeddingTTL = 24 * time.Hour
	)

	addr := getEnv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	ttl, err := parseDurationEnv("EMBEDDING_CACHE_TTL", defaultEmbeddingTTL)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_CACHE_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:         addr,
		Password:     getEnv("REDIS_PASSWORD"),
		User:         getEnv("REDIS_USER"),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      max(readTimeout, writeTimeout),
		EmbeddingTTL: ttl,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "pipeline.run.completed"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, nil
	}
	brokers := strings.Split(brokerStr, ",")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		return nil, nil
	}

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
