package config

import (
	"strings"
	"time"
)

type appConfig struct {
	ServerAddress   string `env:"SERVER_ADDRESS"`
	BaseURL         string `env:"BASE_URL"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	RedisAddr       string `env:"REDIS_ADDR"`
	CacheTTLSeconds int    `env:"CACHE_TTL"`
	SigningSecret   string `env:"SIGNING_SECRET"`
	JWTSecret       string `env:"JWT_SECRET"`
	DomainAllowlist string `env:"DOMAIN_ALLOWLIST"`
	DomainBlocklist string `env:"DOMAIN_BLOCKLIST"`
	SafeBrowsingKey string `env:"SAFE_BROWSING_KEY"`
	GeoEndpoint     string `env:"GEOIP_ENDPOINT"`
}

var defaults = appConfig{
	ServerAddress:   "localhost:8080",
	BaseURL:         "http://localhost:8080",
	CacheTTLSeconds: 60,
	JWTSecret:       "55c21cba3f534ae292ab2cc6921e6bc7",
}

var Current = appConfig{}

func SetDefaults() {
	if Current.ServerAddress == "" {
		Current.ServerAddress = defaults.ServerAddress
	}
	if Current.BaseURL == "" {
		Current.BaseURL = defaults.BaseURL
	}
	if Current.CacheTTLSeconds <= 0 {
		Current.CacheTTLSeconds = defaults.CacheTTLSeconds
	}
	if Current.JWTSecret == "" {
		Current.JWTSecret = defaults.JWTSecret
	}
}

func (c *appConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *appConfig) AllowedDomains() []string {
	return splitDomains(c.DomainAllowlist)
}

func (c *appConfig) BlockedDomains() []string {
	return splitDomains(c.DomainBlocklist)
}

func splitDomains(list string) []string {
	if list == "" {
		return nil
	}
	var domains []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			domains = append(domains, item)
		}
	}
	return domains
}
