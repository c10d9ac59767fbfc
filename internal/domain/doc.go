// Package domain содержит основные типы предметной области Atomika:
// состояния атомов и flow, намерения (intentions), таблицы допустимых
// переходов и структуру зафиксированной ошибки (Failure).
//
// Пакет не имеет зависимостей от других internal-пакетов — на него
// ссылаются все остальные слои.
package domain
