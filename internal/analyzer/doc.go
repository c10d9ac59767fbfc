// Package analyzer решает, что в графе выполнимо прямо сейчас.
//
// По графу выполнения и текущему снимку состояний анализатор вычисляет
// исполняемый фронтир (атомы, готовые к запуску), откатываемый фронтир
// (атомы, готовые к revert в обратном порядке) и разлёт последствий
// ошибки: атомы, путь к которым потерян, помечаются к игнорированию,
// чтобы граф никогда не зависал с вечными PENDING.
package analyzer
