// Package scheduler отвечает за диспетчеризацию готовых атомов.
//
// Три стратегии с одним контрактом: Serial (по одному атому, в
// детерминированном порядке), Parallel (ограниченный локальный пул
// воркеров) и Remote (публикация запроса во внешнюю очередь, приём
// событий завершения из неё же).
//
// Планировщик только выполняет; все записи в state-машину и storage
// делает движок по событиям из Completions.
package scheduler
