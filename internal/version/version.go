// Package version хранит сведения о сборке, которые подставляются через -ldflags:
//
//	-X github.com/vladislavdragonenkov/encontrar/internal/version.version=v1.2.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// String: строка для лога старта сервиса.
func String() string {
	return fmt.Sprintf("encontrar version=%s commit=%s date=%s", version, commit, date)
}
