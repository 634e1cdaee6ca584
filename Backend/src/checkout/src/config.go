package main

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr       string
	DBPath         string
	RabbitURL      string
	RabbitExchange string
	TaxRate        float64 // fracción, p.ej. 0.08; el original mezclaba 8% y 0% hardcodeados
	ShippingCents  int64   // bienes digitales: 0 por defecto
	SeedOnStart    bool
}

func LoadConfig() *Config {
	return &Config{
		HTTPAddr:       getEnv("CHECKOUT_HTTP_ADDR", ":8080"),
		DBPath:         getEnv("CHECKOUT_DB_PATH", "./checkout.db"),
		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "domain_events"),
		TaxRate:        getEnvFloat("TAX_RATE", 0),
		ShippingCents:  getEnvInt("SHIPPING_CENTS", 0),
		SeedOnStart:    getEnv("SEED_ON_START", "") == "1",
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
