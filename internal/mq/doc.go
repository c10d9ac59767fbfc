// Package mq — транспорт remote-режима поверх RabbitMQ.
//
// Движок публикует запросы atom.dispatch в очередь atoms.dispatch,
// воркеры — конкурирующие потребители этой очереди — выполняют атомы
// и публикуют события atom.started / atom.completed в atoms.events,
// откуда их забирает remote-планировщик движка. Необработанные
// запросы уходят в DLQ.
//
// Ядро движка про транспорт не знает: для него это граница
// "поставить работу / получить событие завершения".
package mq
