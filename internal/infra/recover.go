package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f, restarting it after a panic until maxPanics
// restarts are spent. A negative maxPanics restarts forever.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.WithField("job", id).Errorf("panic: %s at %s", err, identifyPanic())
		switch {
		case maxPanics == 0:
			log.WithField("job", id).Fatal("panic limit exceeded, exiting")
		case maxPanics > 0:
			go GoRecoverable(maxPanics-1, id, f)
		default:
			go GoRecoverable(maxPanics, id, f)
		}
	}()
	f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}
	return fmt.Sprintf("pc:%x", pc)
}
