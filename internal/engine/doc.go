// Package engine — оркестратор выполнения скомпилированного графа.
//
// Движок крутит цикл "фронтир → диспетчеризация → применение событий":
// анализатор вычисляет готовые атомы по in-memory зеркалу состояния,
// планировщик их выполняет, движок применяет события завершения,
// записывая каждый переход сперва в storage, затем в зеркало. Падение
// процесса между записями безопасно: при возобновлении состояние
// поднимается из storage, а атомы, застрявшие в SCHEDULED/RUNNING,
// сбрасываются в PENDING.
//
// Непоглощённая ошибка атома переводит движок в режим отката: все
// успевшие выполниться атомы компенсируются в обратном порядке,
// недостижимые помечаются IGNORED, итог — FAILURE. Ошибка внутри
// области retry-контроллера поглощается им: область откатывается и
// выполняется заново, пока политика разрешает повторы.
package engine
