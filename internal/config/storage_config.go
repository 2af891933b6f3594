package config

type StorageConfig interface {
	GetStorageBackend() string
	GetSessionBackend() string
	GetSQLitePath() string
	GetRedisAddr() string
	GetBcryptCost() int
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageBackend selects the user store: "memory" or "sqlite".
func (Storage) GetStorageBackend() string {
	return GetEnv("STORAGE_BACKEND", "memory")
}

// GetSessionBackend selects the session store: "memory", "sqlite" or "redis".
func (Storage) GetSessionBackend() string {
	return GetEnv("SESSION_BACKEND", "memory")
}

func (Storage) GetSQLitePath() string {
	return GetEnv("SQLITE_PATH", "./data/auth.db")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetBcryptCost() int {
	return GetIntEnv("BCRYPT_COST", 10)
}
