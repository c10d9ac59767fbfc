package domain

import (
	"errors"
	"fmt"
)

// AtomState — состояние атома в графе выполнения.
//
// Жизненный цикл:
//
//	PENDING → SCHEDULED → RUNNING → SUCCESS
//	                              ↘ FAILURE
//	SUCCESS → REVERTING → REVERTED
//	                    ↘ FAILURE (ошибка при revert — фатально для flow)
//	FAILURE → RETRYING (решение retry-контроллера) → PENDING для дочернего подграфа
//	PENDING → IGNORED (недостижим из-за FAILURE выше по графу)
type AtomState string

const (
	// StatePending — атом ещё не выполнялся.
	StatePending AtomState = "PENDING"

	// StateScheduled — атом передан планировщику, но ещё не стартовал.
	StateScheduled AtomState = "SCHEDULED"

	// StateRunning — атом выполняется.
	StateRunning AtomState = "RUNNING"

	// StateSuccess — атом успешно завершён.
	StateSuccess AtomState = "SUCCESS"

	// StateFailure — атом завершился с ошибкой.
	StateFailure AtomState = "FAILURE"

	// StateReverting — выполняется компенсирующий откат атома.
	StateReverting AtomState = "REVERTING"

	// StateReverted — откат атома завершён.
	StateReverted AtomState = "REVERTED"

	// StateRetrying — retry-контроллер решил повторить дочерний подграф.
	StateRetrying AtomState = "RETRYING"

	// StateIgnored — атом пропущен: путь к его выполнению потерян
	// из-за FAILURE выше по графу. Терминальное состояние.
	StateIgnored AtomState = "IGNORED"
)

// IsTerminal возвращает true, если состояние финальное для текущего прогона.
// SUCCESS и FAILURE остаются покидаемыми: из них возможен revert или retry.
func (s AtomState) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateReverted, StateIgnored:
		return true
	default:
		return false
	}
}

// Intention — директива для атома, которой руководствуется анализатор.
type Intention string

const (
	// IntentionExecute — атом должен быть выполнен.
	IntentionExecute Intention = "EXECUTE"

	// IntentionRevert — атом должен быть откачен.
	IntentionRevert Intention = "REVERT"

	// IntentionIgnore — атом исключён из выполнения.
	IntentionIgnore Intention = "IGNORE"
)

// FlowState — состояние flow в целом.
//
// Жизненный цикл:
//
//	PENDING → RESUMING → SCHEDULING → WAITING → (SCHEDULING | SUCCESS | REVERTING)
//	REVERTING → (REVERTED | FAILURE)
//	WAITING → SUSPENDED (по сигналу suspend, возобновляемо)
type FlowState string

const (
	// FlowPending — flow создан, выполнение не начиналось.
	FlowPending FlowState = "PENDING"

	// FlowResuming — загрузка состояния из storage и сверка сигнатуры графа.
	FlowResuming FlowState = "RESUMING"

	// FlowScheduling — вычисление фронтира и передача атомов планировщику.
	FlowScheduling FlowState = "SCHEDULING"

	// FlowWaiting — ожидание событий завершения от планировщика.
	FlowWaiting FlowState = "WAITING"

	// FlowSuspended — выполнение приостановлено, возобновляемо.
	FlowSuspended FlowState = "SUSPENDED"

	// FlowSuccess — все атомы достигли SUCCESS.
	FlowSuccess FlowState = "SUCCESS"

	// FlowReverting — идёт откат после FAILURE или по запросу.
	FlowReverting FlowState = "REVERTING"

	// FlowReverted — откат завершён по запросу вызывающей стороны.
	FlowReverted FlowState = "REVERTED"

	// FlowFailure — flow завершён с ошибкой, откат выполнен.
	FlowFailure FlowState = "FAILURE"
)

// IsTerminal возвращает true, если состояние flow финальное.
func (s FlowState) IsTerminal() bool {
	switch s {
	case FlowSuccess, FlowFailure, FlowReverted, FlowSuspended:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition — запрошенный переход запрещён таблицей переходов.
var ErrInvalidTransition = errors.New("invalid state transition")

// atomTransitions — таблица допустимых переходов атома.
// Переходы REVERTED→PENDING и FAILURE→PENDING нужны для повторного
// выполнения дочернего подграфа retry-контроллера; SCHEDULED→PENDING и
// RUNNING→PENDING — для восстановления после падения процесса.
var atomTransitions = map[AtomState][]AtomState{
	StatePending:   {StateScheduled, StateRunning, StateIgnored},
	StateScheduled: {StateRunning, StatePending, StateIgnored},
	StateRunning:   {StateSuccess, StateFailure, StatePending},
	StateSuccess:   {StateReverting, StateRetrying, StatePending},
	StateFailure:   {StateReverting, StateRetrying, StatePending},
	StateReverting: {StateReverted, StateFailure},
	StateReverted:  {StatePending},
	StateRetrying:  {StateSuccess, StateFailure},
	StateIgnored:   {},
}

// flowTransitions — таблица допустимых переходов flow.
// SUCCESS→RESUMING и FAILURE→RESUMING разрешают повторный прогон
// завершённого flow, SUSPENDED→RESUMING — возобновление после suspend.
// SCHEDULING/WAITING/REVERTING→RESUMING — восстановление после падения
// процесса: эти состояния долговечны, и новый движок поднимает запуск
// с того места, где упал предыдущий.
var flowTransitions = map[FlowState][]FlowState{
	FlowPending:    {FlowResuming},
	FlowResuming:   {FlowScheduling, FlowReverting, FlowSuspended},
	FlowScheduling: {FlowWaiting, FlowSuccess, FlowReverting, FlowSuspended, FlowResuming},
	FlowWaiting:    {FlowScheduling, FlowSuccess, FlowReverting, FlowSuspended, FlowResuming},
	FlowReverting:  {FlowReverted, FlowFailure, FlowSuspended, FlowResuming},
	FlowSuccess:    {FlowResuming, FlowReverting},
	FlowSuspended:  {FlowResuming},
	FlowReverted:   {},
	FlowFailure:    {FlowResuming},
}

// CheckAtomTransition проверяет переход атома из from в to.
//
// Возвращает (false, nil) для перехода в то же самое состояние —
// такой переход молча игнорируется, это не ошибка.
// Возвращает ErrInvalidTransition для запрещённого перехода.
func CheckAtomTransition(from, to AtomState) (bool, error) {
	if from == to {
		return false, nil
	}
	for _, allowed := range atomTransitions[from] {
		if to == allowed {
			return true, nil
		}
	}
	return false, fmt.Errorf("atom transition %s -> %s: %w", from, to, ErrInvalidTransition)
}

// CheckFlowTransition проверяет переход flow из from в to.
// Семантика аналогична CheckAtomTransition.
func CheckFlowTransition(from, to FlowState) (bool, error) {
	if from == to {
		return false, nil
	}
	for _, allowed := range flowTransitions[from] {
		if to == allowed {
			return true, nil
		}
	}
	return false, fmt.Errorf("flow transition %s -> %s: %w", from, to, ErrInvalidTransition)
}
