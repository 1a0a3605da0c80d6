package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings with environment variables.
func (s *Settings) ApplyEnv() {
	s.Backend = getEnv("BGERASER_BACKEND", s.Backend)
	s.OutputDir = getEnv("BGERASER_OUTPUT_DIR", s.OutputDir)
	s.Rembg.URL = getEnv("BGERASER_REMBG_URL", s.Rembg.URL)
	s.Rembg.Model = getEnv("BGERASER_REMBG_MODEL", s.Rembg.Model)
	s.ComfyUI.URL = getEnv("BGERASER_COMFYUI_URL", s.ComfyUI.URL)
	s.Command.Path = getEnv("BGERASER_COMMAND_PATH", s.Command.Path)
	s.Server.Listen = getEnv("BGERASER_LISTEN", s.Server.Listen)
	if v := os.Getenv("BGERASER_SERVER_ROOTS"); v != "" {
		s.Server.Roots = filepath.SplitList(v)
	}
	s.Log.Level = getEnv("BGERASER_LOG_LEVEL", s.Log.Level)
	s.Preprocess.MaxSize = getEnvInt("BGERASER_MAX_SIZE", s.Preprocess.MaxSize)

	s.Archive.Endpoint = getEnv("MINIO_ENDPOINT", s.Archive.Endpoint)
	s.Archive.AccessKey = getEnv("MINIO_ACCESS_KEY", s.Archive.AccessKey)
	s.Archive.SecretKey = getEnv("MINIO_SECRET_KEY", s.Archive.SecretKey)
	s.Archive.Bucket = getEnv("MINIO_BUCKET", s.Archive.Bucket)
	s.Archive.UseSSL = getEnvBool("MINIO_USE_SSL", s.Archive.UseSSL)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
