package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTAccessSecret    string
	JWTRefreshSecret   string
	JWTAccessTTLHours  int
	JWTRefreshTTLHours int

	// Redis Config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Razorpay Keys
	RazorpayKey    string
	RazorpaySecret string

	// Kafka Config
	KafkaBrokers      string
	KafkaBookingTopic string

	// Booking engine knobs (minutes unless noted)
	CancellationCutoffMins int // cancellation disallowed inside this window before start
	BookingLeadMins        int // a new booking must start at least this far in the future
	PendingExpiryMins      int // pending_payment bookings older than this are expired
	SweepIntervalSecs      int // background sweeper period

	AuthRateLimitPerMin int // per-IP request limit on the public auth routes
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	accessTTL, _ := strconv.Atoi(os.Getenv("JWT_ACCESS_TTL_HOURS"))
	refreshTTL, _ := strconv.Atoi(os.Getenv("JWT_REFRESH_TTL_HOURS"))
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	return &Config{
		Port: os.Getenv("PORT"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		JWTAccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTLHours:  accessTTL,
		JWTRefreshTTLHours: refreshTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		RazorpayKey:    os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret: os.Getenv("RAZORPAY_KEY_SECRET"),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaBookingTopic: getEnv("KAFKA_BOOKING_TOPIC", "booking-events"),

		CancellationCutoffMins: getEnvInt("BOOKING_CANCELLATION_CUTOFF_MINS", 120),
		BookingLeadMins:        getEnvInt("BOOKING_LEAD_MINS", 10),
		PendingExpiryMins:      getEnvInt("BOOKING_PENDING_EXPIRY_MINS", 15),
		SweepIntervalSecs:      getEnvInt("BOOKING_SWEEP_INTERVAL_SECS", 60),

		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 100),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
