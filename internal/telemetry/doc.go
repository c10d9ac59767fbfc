// Package telemetry — структурированное логирование и метрики.
package telemetry
