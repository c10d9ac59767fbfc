// Package config — YAML-конфигурация демонов.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Atomika/internal/mq"
	"github.com/shaiso/Atomika/internal/storage"
)

// Config — конфигурация процесса (движок или воркер).
type Config struct {
	// Storage — параметры хранилища состояния.
	Storage StorageConfig `yaml:"storage"`

	// MQ — параметры RabbitMQ для remote-режима.
	MQ MQConfig `yaml:"mq"`

	// Worker — параметры воркера.
	Worker WorkerConfig `yaml:"worker"`

	// HTTPPort — порт для /healthz и /metrics.
	HTTPPort int `yaml:"http_port"`
}

// StorageConfig — параметры хранилища.
type StorageConfig struct {
	// Kind — вид бэкенда: memory или postgres.
	Kind string `yaml:"kind"`

	// DSN — строка подключения PostgreSQL.
	DSN string `yaml:"dsn"`
}

// MQConfig — параметры RabbitMQ.
type MQConfig struct {
	// URL — адрес брокера.
	URL string `yaml:"url"`
}

// WorkerConfig — параметры воркера.
type WorkerConfig struct {
	// Name — имя воркера (по умолчанию hostname).
	Name string `yaml:"name"`

	// Prefetch — количество неподтверждённых запросов.
	Prefetch int `yaml:"prefetch"`

	// ExecTimeout — таймаут выполнения одного атома.
	ExecTimeout time.Duration `yaml:"exec_timeout"`
}

// UnmarshalYAML разбирает exec_timeout из строки вида "30s".
func (w *WorkerConfig) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Name        string `yaml:"name"`
		Prefetch    int    `yaml:"prefetch"`
		ExecTimeout string `yaml:"exec_timeout"`
	}{Name: w.Name, Prefetch: w.Prefetch}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	w.Name = aux.Name
	w.Prefetch = aux.Prefetch
	if aux.ExecTimeout != "" {
		d, err := time.ParseDuration(aux.ExecTimeout)
		if err != nil {
			return fmt.Errorf("worker.exec_timeout: %w", err)
		}
		w.ExecTimeout = d
	}
	return nil
}

// Default возвращает конфигурацию по умолчанию для локальной разработки.
func Default() Config {
	hostname, _ := os.Hostname()
	return Config{
		Storage:  StorageConfig{Kind: string(storage.KindMemory)},
		MQ:       MQConfig{URL: mq.DefaultURL()},
		Worker:   WorkerConfig{Name: hostname, Prefetch: 5, ExecTimeout: 5 * time.Minute},
		HTTPPort: 8082,
	}
}

// Load читает конфигурацию из YAML-файла поверх значений по умолчанию.
// Пустой path возвращает значения по умолчанию с учётом окружения.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	// Окружение перекрывает файл
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.MQ.URL = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		cfg.Storage.DSN = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch storage.Kind(c.Storage.Kind) {
	case storage.KindMemory, storage.KindPostgres:
	default:
		return fmt.Errorf("storage.kind unsupported: %q", c.Storage.Kind)
	}
	if c.Worker.Prefetch < 0 {
		return fmt.Errorf("worker.prefetch must be non-negative")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port out of range: %d", c.HTTPPort)
	}
	return nil
}
