// Package flow содержит build-time структуру описания работы:
// атомы (Task, Retry) и композиции (Linear, Unordered, Graph),
// вкладывающиеся друг в друга произвольно.
//
// Flow — чисто строительная структура. Она не выполняется напрямую:
// компилятор однократно сплющивает её в неизменяемый граф выполнения
// (см. пакет compiler).
package flow
