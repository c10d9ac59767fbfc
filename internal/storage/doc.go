// Package storage — граница долговременного хранения состояния выполнения.
//
// Всё изменяемое состояние движка живёт здесь, адресуемое именем атома
// в пределах одного flow: состояние, намерение, результат, ошибка,
// счётчик попыток. Движок, убитый посреди выполнения, возобновляется
// новым экземпляром с тем же storage и эквивалентно перекомпилированным
// графом ровно с того места, где остановился предыдущий.
//
// Бэкенды — закрытое перечисление (KindMemory, KindPostgres), выбираемое
// при конструировании; неизвестный вид отвергается сразу, а не при первом
// использовании.
package storage
