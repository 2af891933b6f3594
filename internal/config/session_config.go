package config

import "time"

type SessionConfig interface {
	GetMaxSessionsPerUser() int
	GetSessionSweepInterval() time.Duration
	GetSessionRetention() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetMaxSessionsPerUser() int {
	return GetIntEnv("MAX_SESSIONS_PER_USER", 5)
}

func (Session) GetSessionSweepInterval() time.Duration {
	return GetDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour)
}

func (Session) GetSessionRetention() time.Duration {
	return GetDurationEnv("SESSION_RETENTION", 720*time.Hour)
}
