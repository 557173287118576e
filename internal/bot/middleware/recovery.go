// Package middleware — промежуточные обработчики конвейера апдейтов:
// логирование входящих, rate-limiting, восстановление после паники.
package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic гасит панику обработчика апдейта, чтобы один
// сломавшийся апдейт не ронял весь polling.
func RecoverFromPanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике апдейта — восстановлено")
	}
}
