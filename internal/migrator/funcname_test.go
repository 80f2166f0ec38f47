package migrator

import (
	"reflect"
	"runtime"
	"strings"
)

// funcName names the method behind a bound Handler value.
func funcName(h Handler) string {
	name := runtime.FuncForPC(reflect.ValueOf(h).Pointer()).Name()
	name = strings.TrimSuffix(name, "-fm")
	return name[strings.LastIndex(name, ".")+1:]
}
