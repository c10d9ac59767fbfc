package worker

import "errors"

// ErrUnknownAtom — для атома не зарегистрирован исполнитель.
var ErrUnknownAtom = errors.New("unknown atom")
