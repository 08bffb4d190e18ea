package engine

import "errors"

var (
	// ErrDependencyNotReady родитель (или сама сущность) еще не получил постоянный идентификатор; повторяется как обычная ошибка
	ErrDependencyNotReady = errors.New("dependency not ready")
	// ErrLocalStore ошибка локального хранилища прерывает текущий цикл
	ErrLocalStore = errors.New("local store error")
	// ErrTransferInterrupted поток передачи закрылся без завершения
	ErrTransferInterrupted = errors.New("transfer interrupted")
)
