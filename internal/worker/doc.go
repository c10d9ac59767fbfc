// Package worker — удалённый исполнитель атомов.
//
// Worker — stateless компонент: получает запросы atom.dispatch из
// очереди, находит исполнителя в реестре по имени атома, выполняет
// работу и публикует события atom.started / atom.completed. Несколько
// воркеров конкурируют за одну очередь и масштабируются горизонтально.
package worker
