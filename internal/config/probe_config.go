package config

import (
	"strconv"
	"time"
)

type ProbeConfig interface {
	GetProbeTimeout() time.Duration
	GetProbeRetryDelay() time.Duration
	GetProbeRetries() int
	GetProbeDebounce() time.Duration
}

type Probe struct{}

var _ ProbeConfig = Probe{}

func (Probe) GetProbeTimeout() time.Duration {
	return durationEnv("PROBE_TIMEOUT", 10*time.Second)
}

func (Probe) GetProbeRetryDelay() time.Duration {
	return durationEnv("PROBE_RETRY_DELAY", 1500*time.Millisecond)
}

// GetProbeRetries is the number of attempts after the first one
func (Probe) GetProbeRetries() int {
	retries, err := strconv.Atoi(GetEnv("PROBE_RETRIES", "3"))
	if err != nil || retries < 0 {
		return 3
	}
	return retries
}

func (Probe) GetProbeDebounce() time.Duration {
	return durationEnv("PROBE_DEBOUNCE", 500*time.Millisecond)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(GetEnv(envVar, defaultValue.String()))
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
