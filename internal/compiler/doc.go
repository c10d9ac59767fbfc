// Package compiler однократно сплющивает вложенную композицию (пакет flow)
// в неизменяемый граф выполнения.
//
// Компиляция — чистая функция: она не трогает storage и ничего не
// выполняет. Рёбра графа двух видов: структурные (порядок из композиции)
// и неявные рёбра данных (атом A → атом B, если B требует символ,
// который предоставляет A). Цикл, дубликат имени или неразрешённый
// символ — ошибка времени сборки, никогда не времени выполнения.
package compiler
